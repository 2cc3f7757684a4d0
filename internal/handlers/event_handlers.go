package handlers

import (
	"io"

	"github.com/gin-gonic/gin"
)

// StreamPaymentEvents is the handler for GET /v1/events/payments.
// Streams PaymentComplete events over SSE so a mounted payment-status
// observer (the download gate, a pricing dialog) reacts without polling.
// The subscription is torn down when the client disconnects, so no
// writes happen after teardown.
func (h *Handlers) StreamPaymentEvents(c *gin.Context) {
	ch, unsubscribe := h.Bus.Subscribe()
	defer unsubscribe()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent("paymentComplete", ev)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
