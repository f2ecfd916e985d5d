package common

import (
	"encoding/hex"
	"math/big"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransferRequestLayout(t *testing.T) {
	recipient := ethcommon.HexToAddress("0x95222290DD7278Aa3Ddd389Cc1E1d165CC4BAfe5")
	req := &TransferRequest{ChainID: 137, AppID: 1, Recipient: recipient, PercentageFee: 25, Speed: SpeedNormal}

	encoded := req.Encode()
	assert.Len(t, encoded, TransferRequestLength)
	assert.Equal(t, "0089000195222290dd7278aa3ddd389cc1e1d165cc4bafe5001900", hex.EncodeToString(encoded))

	decoded, err := ParseTransferRequest(encoded)
	require.NoError(t, err)
	assert.Equal(t, req, decoded)
}

func TestParseTransferRequestErrors(t *testing.T) {
	req := &TransferRequest{ChainID: 1, AppID: 1, Recipient: RandEthAddress()}
	encoded := req.Encode()

	_, err := ParseTransferRequest(encoded[:26])
	assert.ErrorIs(t, err, ErrPayloadLength)
	assert.ErrorIs(t, err, ErrMalformedPayload)

	bad := append([]byte{}, encoded...)
	bad[26] = 2
	_, err = ParseTransferRequest(bad)
	assert.ErrorIs(t, err, ErrInvalidSpeed)

	bad = append([]byte{}, encoded...)
	bad[24], bad[25] = 0x27, 0x11 // 10001
	_, err = ParseTransferRequest(bad)
	assert.ErrorIs(t, err, ErrFeeOutOfRange)

	// an exchange payload is not a transfer payload
	_, err = ParseTransferRequest(make([]byte, ExchangeRequestLength))
	assert.ErrorIs(t, err, ErrPayloadLength)
}

func TestExchangeRequestRoundTrip(t *testing.T) {
	req := &ExchangeRequest{
		TransferRequest: TransferRequest{ChainID: 137, AppID: 2, Recipient: RandEthAddress(), PercentageFee: 100, Speed: SpeedFast},
		ExchangeToken:   RandEthAddress(),
		OutputAmount:    big.NewInt(123456789),
		Deadline:        1700000000,
		IsFixedToken:    true,
	}
	encoded, err := req.Encode()
	require.NoError(t, err)
	assert.Len(t, encoded, ExchangeRequestLength)
	assert.Equal(t, byte(1), encoded[79])

	decoded, err := ParseExchangeRequest(encoded)
	require.NoError(t, err)
	assert.Equal(t, req.String(), decoded.String())

	encoded[79] = 7
	_, err = ParseExchangeRequest(encoded)
	assert.ErrorIs(t, err, ErrInvalidFixedFlag)

	req.OutputAmount = new(big.Int).Lsh(big.NewInt(1), 224)
	_, err = req.Encode()
	assert.ErrorIs(t, err, ErrOutputAmountRange)
}
