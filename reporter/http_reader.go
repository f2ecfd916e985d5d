// Reader is a testing facility to read the output of a http reporter and
// to post relayer submissions to it.

package reporter

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
)

type HttpReader struct {
	serverIP   string // listen ip
	serverPort string // listen port
}

func NewHttpReader(serverIP string, serverPort string) *HttpReader {
	return &HttpReader{
		serverIP:   serverIP,
		serverPort: serverPort,
	}
}

func (hr *HttpReader) url(route string) string {
	return "http://" + hr.serverIP + ":" + hr.serverPort + route
}

// get returns the status code and body of route.
func (hr *HttpReader) get(route string) (int, string, error) {
	resp, err := http.Get(hr.url(route))
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, "", err
	}
	return resp.StatusCode, string(body), nil
}

func (hr *HttpReader) post(route string, payload interface{}) (int, string, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return 0, "", err
	}
	resp, err := http.Post(hr.url(route), "application/json", bytes.NewReader(b))
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, "", err
	}
	return resp.StatusCode, string(body), nil
}

func (hr *HttpReader) GetHello() (string, error) {
	_, body, err := hr.get(ROUTE_HELLO)
	return body, err
}

func (hr *HttpReader) GetParams() (int, string, error) {
	return hr.get(ROUTE_PARAMS)
}

func (hr *HttpReader) GetLockers(status string) (int, string, error) {
	route := ROUTE_LOCKERS
	if status != "" {
		route += "?status=" + status
	}
	return hr.get(route)
}

func (hr *HttpReader) GetLocker(address string) (int, string, error) {
	return hr.get(ROUTE_LOCKER + "/" + address)
}

// GetRequest reads the record of txID, router is "transfer", "exchange" or
// empty for both.
func (hr *HttpReader) GetRequest(txID string, router string) (int, string, error) {
	route := ROUTE_REQUEST + "/" + txID
	if router != "" {
		route += "?router=" + router
	}
	return hr.get(route)
}

func (hr *HttpReader) GetBalance(token string, address string) (int, string, error) {
	return hr.get(ROUTE_BALANCE + "/" + token + "/" + address)
}

func (hr *HttpReader) GetConvert(amount string, from string, to string) (int, string, error) {
	return hr.get(ROUTE_CONVERT + "?amount=" + amount + "&from=" + from + "&to=" + to)
}

func (hr *HttpReader) GetMetrics() (string, error) {
	_, body, err := hr.get(ROUTE_METRICS)
	return body, err
}

func (hr *HttpReader) PostTransfer(s *DepositSubmission) (int, string, error) {
	return hr.post(ROUTE_TRANSFER, s)
}

func (hr *HttpReader) PostExchange(s *DepositSubmission) (int, string, error) {
	return hr.post(ROUTE_EXCHANGE, s)
}

func (hr *HttpReader) PostHeader(s *HeaderSubmission) (int, string, error) {
	return hr.post(ROUTE_HEADER, s)
}
