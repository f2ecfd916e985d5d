package btcsync

import (
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btcd/wire"
)

type RpcClientConfig struct {
	ServerAddr string // ip address of server
	Port       string // port of server
	Username   string
	Pwd        string
}

// Wrapper of btc rpc client. It reads the header chain of a bitcoin node.
type RpcClient struct {
	client *rpcclient.Client
}

var _ HeaderSource = (*RpcClient)(nil)

func NewRpcClient(rcc *RpcClientConfig) (*RpcClient, error) {
	client, err := rpcclient.New(&rpcclient.ConnConfig{
		Host:         rcc.ServerAddr + ":" + rcc.Port,
		User:         rcc.Username,
		Pass:         rcc.Pwd,
		HTTPPostMode: true, // original bitcoin only supports HTTP POST mode
		DisableTLS:   true, // original bitcoin does not support TLS
	}, nil)
	if err != nil {
		return nil, err
	}
	return &RpcClient{client: client}, nil
}

func (r *RpcClient) Close() {
	r.client.Shutdown()
}

// Get the latest block height.
func (r *RpcClient) GetLatestBlockHeight() (uint64, error) {
	h, err := r.client.GetBlockCount()
	if err != nil {
		return 0, err
	}
	return uint64(h), nil
}

// Get the header of the best chain block at height.
func (r *RpcClient) GetBlockHeader(height uint64) (*wire.BlockHeader, error) {
	hash, err := r.client.GetBlockHash(int64(height))
	if err != nil {
		return nil, err
	}
	return r.client.GetBlockHeader(hash)
}
