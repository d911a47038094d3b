package handle

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/filevault/pkg/middleware"
)

// SchedulerJobs 返回所有定时任务的状态信息.
//
//	@Summary		List scheduled jobs
//	@Description	返回调度器中全部定时任务的名称、cron 表达式与执行状态
//	@Tags			scheduler
//	@Produce		json
//	@Success		200	{object}	map[string]any
//	@Router			/api/v1/scheduler/jobs [get]
func SchedulerJobs(c *gin.Context) {
	sched := middleware.GetScheduler(c)
	if sched == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "scheduler not initialized"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"jobs": sched.GetJobInfos()})
}

// SchedulerRunJob 立即触发一次指定任务.
//
//	@Summary		Run a scheduled job now
//	@Description	按名称立即执行一次定时任务，不影响原有调度
//	@Tags			scheduler
//	@Produce		json
//	@Param			name	path		string	true	"任务名称"
//	@Success		200		{object}	map[string]any
//	@Failure		404		{object}	map[string]any
//	@Router			/api/v1/scheduler/jobs/{name}/run [post]
func SchedulerRunJob(c *gin.Context) {
	sched := middleware.GetScheduler(c)
	if sched == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "scheduler not initialized"})
		return
	}

	name := c.Param("name")
	if err := sched.RunJobNow(name); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "job triggered", "name": name})
}
