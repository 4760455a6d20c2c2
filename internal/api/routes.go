package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Telephony webhooks
	mux.Handle("POST /api/v1/telephony/events", chain(http.HandlerFunc(h.IngestTelephonyEvent)))

	// Flows
	mux.Handle("GET /api/v1/flows", chain(http.HandlerFunc(h.ListFlows)))
	mux.Handle("POST /api/v1/flows", chain(http.HandlerFunc(h.CreateFlow)))
	mux.Handle("GET /api/v1/flows/{id}", chain(http.HandlerFunc(h.GetFlow)))
	mux.Handle("PUT /api/v1/flows/{id}", chain(http.HandlerFunc(h.UpdateFlow)))
	mux.Handle("DELETE /api/v1/flows/{id}", chain(http.HandlerFunc(h.DeleteFlow)))

	// Flow Versions
	mux.Handle("GET /api/v1/flows/{id}/versions", chain(http.HandlerFunc(h.ListFlowVersions)))
	mux.Handle("POST /api/v1/flows/{id}/versions", chain(http.HandlerFunc(h.CreateFlowVersion)))
	mux.Handle("GET /api/v1/flows/{id}/versions/{version}", chain(http.HandlerFunc(h.GetFlowVersion)))
	mux.Handle("POST /api/v1/flows/{id}/versions/{version}/publish", chain(http.HandlerFunc(h.PublishFlowVersion)))

	// Agents
	mux.Handle("GET /api/v1/agents", chain(http.HandlerFunc(h.ListAgents)))
	mux.Handle("POST /api/v1/agents", chain(http.HandlerFunc(h.CreateAgent)))
	mux.Handle("GET /api/v1/agents/{id}", chain(http.HandlerFunc(h.GetAgent)))
	mux.Handle("DELETE /api/v1/agents/{id}", chain(http.HandlerFunc(h.DeleteAgent)))
	mux.Handle("POST /api/v1/agents/{id}/status", chain(http.HandlerFunc(h.SetAgentStatus)))

	// Queues
	mux.Handle("GET /api/v1/queues", chain(http.HandlerFunc(h.ListQueues)))
	mux.Handle("POST /api/v1/queues", chain(http.HandlerFunc(h.CreateQueue)))
	mux.Handle("GET /api/v1/queues/{name}", chain(http.HandlerFunc(h.GetQueue)))
	mux.Handle("DELETE /api/v1/queues/{name}", chain(http.HandlerFunc(h.DeleteQueue)))

	// Calls
	mux.Handle("GET /api/v1/calls", chain(http.HandlerFunc(h.ListRecentCalls)))
}
