package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/paylink/internal/audit/domain"
	"github.com/smallbiznis/paylink/internal/auditcontext"
	"github.com/smallbiznis/paylink/internal/observability/logger"
	"go.uber.org/zap"
)

// maxWebhookBody caps webhook payload reads at 1 MiB.
const maxWebhookBody = 1 << 20

// StripeWebhook ingests gateway events. It always answers 200 so the gateway
// stops retrying; the body reports whether the event was accepted. A rejected
// event is a signature or processing problem to investigate from logs, not
// something a gateway retry will fix.
func (s *Server) StripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		s.log.Warn("webhook body read failed", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"received": false})
		return
	}

	signature := c.GetHeader("Stripe-Signature")
	ctx := auditcontext.WithActor(c.Request.Context(), string(auditdomain.ActorTypeWebhook), "stripe")
	if err := s.paymentSvc.IngestWebhook(ctx, payload, signature); err != nil {
		s.log.Warn("webhook rejected",
			zap.String("signature", logger.MaskSignature(signature)),
			zap.Error(err),
		)
		c.JSON(http.StatusOK, gin.H{"received": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
