package ops

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mkrogh/tidende/internal/worker"
)

// GetDiscoveryReportHandler returns the most recent discovery run report.
func GetDiscoveryReportHandler(reports *worker.ReportCache) gin.HandlerFunc {
	return func(c *gin.Context) {
		report, err := reports.LoadDiscovery(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load report"})
			return
		}
		if report == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no discovery run recorded yet"})
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

// GetNotifyReportHandler returns the most recent fan-out summary.
func GetNotifyReportHandler(reports *worker.ReportCache) gin.HandlerFunc {
	return func(c *gin.Context) {
		summary, err := reports.LoadNotify(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load report"})
			return
		}
		if summary == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no fan-out recorded yet"})
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}

// TriggerDiscoveryHandler enqueues an out-of-schedule discovery run.
func TriggerDiscoveryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := worker.EnqueueNewsDiscover(); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue discovery run"})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"status": "enqueued"})
	}
}
