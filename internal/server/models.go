package server

import (
	"newsrag/internal/retrieval"
	"newsrag/internal/session"
)

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type chatResponse struct {
	Reply     string               `json:"reply"`
	Citations []retrieval.Citation `json:"citations"`
	SessionID string               `json:"session_id"`
}

type sessionResponse struct {
	SessionID string         `json:"session_id"`
	Turns     []session.Turn `json:"turns"`
}
