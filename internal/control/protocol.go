package control

import "encoding/json"

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *responseError  `json:"error,omitempty"`
}

type responseError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type initializeResult struct {
	ProtocolVersion string            `json:"protocolVersion"`
	ServerInfo      map[string]string `json:"serverInfo"`
}

type surfaceInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Primary bool   `json:"primary"`
}

type surfacesResult struct {
	Count    int           `json:"count"`
	Surfaces []surfaceInfo `json:"surfaces"`
}

type ackResult struct {
	OK      bool `json:"ok"`
	Playing bool `json:"playing"`
}

type assignResult struct {
	OK       bool `json:"ok"`
	Surfaces int  `json:"surfaces"`
	Items    int  `json:"items"`
}

type statusResult struct {
	Playing  bool              `json:"playing"`
	Surfaces map[string]string `json:"surfaces"`
}

// assignEntry is one queue item in an assign request.
type assignEntry struct {
	Reference string   `json:"reference"`
	Title     string   `json:"title,omitempty"`
	Opacity   *float64 `json:"opacity,omitempty"`
	Volume    *float64 `json:"volume,omitempty"`
}
