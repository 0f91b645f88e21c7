package observability

import (
	"github.com/smallbiznis/paylink/internal/observability/logger"
	"github.com/smallbiznis/paylink/internal/observability/tracing"
	"go.uber.org/fx"
)

var Module = fx.Options(
	logger.Module,
	tracing.Module,
)
