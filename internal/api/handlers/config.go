package handlers

import (
	"net/http"

	"github.com/darecoin/backend/internal/config"
	"github.com/darecoin/backend/internal/payment"
	"github.com/gin-gonic/gin"
)

// GetConfig returns the public limits the frontend validates against
func GetConfig(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		lim := cfg.Limits()
		c.JSON(http.StatusOK, gin.H{
			"signupBonus":       lim.SignupBonus,
			"minDareReward":     lim.MinDareReward,
			"maxDareReward":     lim.MaxDareReward,
			"maxTruthReward":    lim.MaxTruthReward,
			"minTransferAmount": lim.MinTransferAmount,
			"maxTopupAmount":    lim.MaxTopupAmount,
			"defaultTimeframe":  cfg.DefaultTimeframe,
			"maxUploadMb":       cfg.MaxUploadMB,
			"drcPrice":          cfg.DRCPrice,
			"currency":          cfg.PaymentCurrency,
			"mockMode":          cfg.MockMode,
			"paymentsEnabled":   payment.Default != nil,
			"razorpayKeyId":     payment.Default.KeyID(),
		})
	}
}
