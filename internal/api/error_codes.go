// internal/api/error_codes.go
package api

// API错误代码常量
const (
	// 通用错误
	ErrorBadRequest    = "BAD_REQUEST"
	ErrorNotFound      = "NOT_FOUND"
	ErrorInternalError = "INTERNAL_ERROR"
	ErrorConflict      = "CONFLICT"

	// 管线相关错误
	ErrorPipelineStartFailed = "PIPELINE_START_FAILED"
	ErrorPipelineRunning     = "PIPELINE_RUNNING"
	ErrorNovelNotFound       = "NOVEL_NOT_FOUND"
	ErrorPlanNotFound        = "PLAN_NOT_FOUND"

	// 审稿相关错误
	ErrorReviewStartFailed = "REVIEW_START_FAILED"
	ErrorReviewNotFound    = "REVIEW_NOT_FOUND"
	ErrorEpisodeInvalid    = "EPISODE_INVALID"

	// 题材相关错误
	ErrorGenreNotFound = "GENRE_NOT_FOUND"

	// 进度/任务相关错误
	ErrorTaskNotFound = "TASK_NOT_FOUND"

	// 产物相关错误
	ErrorArtifactNotFound = "ARTIFACT_NOT_FOUND"
	ErrorPathInvalid      = "PATH_INVALID"

	// LLM服务相关错误
	ErrorLLMServiceUnavailable = "LLM_SERVICE_UNAVAILABLE"
	ErrorLLMConfigInvalid      = "LLM_CONFIG_INVALID"
	ErrorAPIKeyMissing         = "API_KEY_MISSING"
)
