// Reader is a testing facility to exercise a running http reporter.

package reporter

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

type HttpReader struct {
	baseURL string
}

func NewHttpReader(baseURL string) *HttpReader {
	return &HttpReader{baseURL: strings.TrimRight(baseURL, "/")}
}

func (hr *HttpReader) GetHealth() (string, error) {
	return hr.get(ROUTE_HEALTH)
}

func (hr *HttpReader) GetOperation(opID string) (string, error) {
	return hr.get("/v1/operations/" + opID)
}

func (hr *HttpReader) GetBalance(accountKey, assetID string) (string, error) {
	return hr.get("/v1/accounts/" + accountKey + "/balance?asset_id=" + assetID)
}

func (hr *HttpReader) GetSponsor() (string, error) {
	return hr.get(ROUTE_SPONSOR)
}

func (hr *HttpReader) PostPrepare(req *PrepareRequest) (string, int, error) {
	return hr.post(ROUTE_PREPARE, req)
}

func (hr *HttpReader) PostSubmit(opID string, req *SubmitRequest) (string, int, error) {
	return hr.post("/v1/operations/"+opID+"/submit", req)
}

func (hr *HttpReader) get(route string) (string, error) {
	resp, err := http.Get(hr.baseURL + route)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (hr *HttpReader) post(route string, payload any) (string, int, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", 0, err
	}

	resp, err := http.Post(hr.baseURL+route, "application/json", bytes.NewReader(raw))
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, err
	}
	return string(body), resp.StatusCode, nil
}
