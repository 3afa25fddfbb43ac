package rpc

import (
	"encoding/json"

	"github.com/xuperchain/objcore/kernel/protocol"
)

// 错误码沿用xerror，0表示成功
const ErrCodeSuccess = 0

type ReqHeader struct {
	LogId    string `json:"logId"`
	SelfName string `json:"selfName"`
}

type RespHeader struct {
	LogId   string `json:"logId"`
	Error   int    `json:"error"`
	Message string `json:"message,omitempty"`
	TraceId string `json:"traceId"`
}

type HeaderGetter interface {
	GetHeader() *ReqHeader
}

type AddRequestReq struct {
	Header *ReqHeader `json:"header"`
	// Request protocol.MarshalRequestJSON的结果
	Request json.RawMessage `json:"request"`
}

func (r *AddRequestReq) GetHeader() *ReqHeader { return r.Header }

type AddRequestResp struct {
	Header    *RespHeader     `json:"header"`
	Reference string          `json:"reference"`
	Response  json.RawMessage `json:"response,omitempty"`
}

type GetResponseReq struct {
	Header    *ReqHeader `json:"header"`
	Reference string     `json:"reference"`
}

func (r *GetResponseReq) GetHeader() *ReqHeader { return r.Header }

type GetResponseResp struct {
	Header   *RespHeader     `json:"header"`
	Response json.RawMessage `json:"response,omitempty"`
}

type GetStateReq struct {
	Header *ReqHeader `json:"header"`
	Object string     `json:"object"`
}

func (r *GetStateReq) GetHeader() *ReqHeader { return r.Header }

type GetStateResp struct {
	Header  *RespHeader      `json:"header"`
	Updates protocol.Updates `json:"updates"`
}

type GetManifestReq struct {
	Header *ReqHeader `json:"header"`
}

func (r *GetManifestReq) GetHeader() *ReqHeader { return r.Header }

type GetManifestResp struct {
	Header   *RespHeader `json:"header"`
	Manifest string      `json:"manifest,omitempty"`
}
