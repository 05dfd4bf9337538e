// internal/api/handlers.go
package api

import (
	"context"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jubenlab/jubengen/internal/config"
	"github.com/jubenlab/jubengen/internal/genres"
	"github.com/jubenlab/jubengen/internal/models"
	"github.com/jubenlab/jubengen/internal/prompts"
	"github.com/jubenlab/jubengen/internal/rules"
	"github.com/jubenlab/jubengen/internal/services"
	"github.com/jubenlab/jubengen/internal/storage"
	"github.com/jubenlab/jubengen/internal/utils"
)

// Handler 处理API请求
type Handler struct {
	Pipeline *services.PipelineService
	Review   *services.ReviewService
	Progress *services.ProgressService
	Storage  *storage.FileStorage
	Config   *config.Config
	Response *ResponseHelper

	logger *utils.Logger
}

// NewHandler 创建API处理器
func NewHandler(
	pipeline *services.PipelineService,
	review *services.ReviewService,
	progress *services.ProgressService,
	fs *storage.FileStorage,
	cfg *config.Config,
) *Handler {
	return &Handler{
		Pipeline: pipeline,
		Review:   review,
		Progress: progress,
		Storage:  fs,
		Config:   cfg,
		Response: NewResponseHelper(),
		logger:   utils.GetLoggerWithName("api"),
	}
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(c *gin.Context) {
	h.Response.Success(c, gin.H{
		"status":   "ok",
		"provider": h.Config.LLMProvider,
	})
}

// GetMetrics 返回运行指标快照
func (h *Handler) GetMetrics(c *gin.Context) {
	h.Response.Success(c, utils.GetMetricsCollector().GetMetrics())
}

// RunPipelineRequest 启动完整生成管线的请求
type RunPipelineRequest struct {
	NovelPath    string `json:"novel_path" binding:"required"`
	ChapterStart int    `json:"chapter_start"`
	ChapterEnd   int    `json:"chapter_end"`
	Genre        string `json:"genre"`
	OutputDir    string `json:"output_dir"`

	// 规则文本文件路径，可选
	RhythmPath   string `json:"rhythm_path"`
	EndHookPath  string `json:"end_hook_path"`
	TemplatePath string `json:"template_path"`

	// 样例剧本路径，用于画像融合，可选
	SampleScripts []string `json:"sample_scripts"`

	Episodes      int     `json:"episodes"`
	PassThreshold float64 `json:"pass_threshold"`
	MaxRounds     *int    `json:"max_rounds"`
	Workers       int     `json:"workers"`
}

// RunPipeline 异步启动完整生成管线，返回进度任务ID
func (h *Handler) RunPipeline(c *gin.Context) {
	var req RunPipelineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "请求参数不合法: "+err.Error())
		return
	}

	adaptRules, ok := h.loadRules(c, req.RhythmPath, req.EndHookPath, req.TemplatePath)
	if !ok {
		return
	}

	outputDir := req.OutputDir
	if outputDir == "" {
		outputDir = "output"
	}

	spec := prompts.DefaultEpisodeSpec()
	if req.Episodes > 0 {
		spec.Episodes = req.Episodes
	}

	maxRounds := h.Config.Review.MaxRounds
	if req.MaxRounds != nil {
		maxRounds = *req.MaxRounds
	}
	threshold := req.PassThreshold
	if threshold <= 0 {
		threshold = h.Config.Review.PassThreshold
	}

	taskID := utils.NewTaskID("pipeline")
	tracker := h.Progress.CreateTracker(taskID)

	go func() {
		// 任务生命周期独立于 HTTP 请求
		ctx := context.Background()
		result, err := h.Pipeline.Run(ctx, services.PipelineOptions{
			NovelPath:     req.NovelPath,
			ChapterStart:  req.ChapterStart,
			ChapterEnd:    req.ChapterEnd,
			Genre:         req.Genre,
			Rules:         adaptRules,
			SampleScripts: req.SampleScripts,
			Spec:          spec,
			OutputDir:     outputDir,
			PassThreshold: threshold,
			MaxRounds:     maxRounds,
			Workers:       req.Workers,
			Tracker:       tracker,
		})
		if err != nil {
			h.logger.Errorf("管线任务 %s 失败：%v", taskID, err)
			tracker.Fail(err.Error())
			return
		}
		tracker.Complete(taskCompleteMessage(result.Review))
	}()

	h.Response.Accepted(c, gin.H{"task_id": taskID})
}

// RunReviewRequest 启动批量审稿的请求
type RunReviewRequest struct {
	EpisodesDir string `json:"episodes_dir" binding:"required"`
	OutputDir   string `json:"output_dir"`

	// PlanPath 节拍表 JSON，提供时逐集注入评审上下文
	PlanPath string `json:"plan_path"`
	// ConstraintsPath 融合约束 JSON，可选
	ConstraintsPath string `json:"constraints_path"`

	PassThreshold float64 `json:"pass_threshold"`
	MaxRounds     *int    `json:"max_rounds"`
	Workers       int     `json:"workers"`
}

// RunReview 异步启动批量审稿循环，返回进度任务ID
func (h *Handler) RunReview(c *gin.Context) {
	var req RunReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "请求参数不合法: "+err.Error())
		return
	}

	opts := services.ReviewOptions{
		OutputDir:     req.OutputDir,
		PassThreshold: req.PassThreshold,
		Workers:       req.Workers,
	}
	if opts.OutputDir == "" {
		opts.OutputDir = filepath.Dir(req.EpisodesDir)
	}
	if req.PassThreshold <= 0 {
		opts.PassThreshold = h.Config.Review.PassThreshold
	}
	opts.MaxRounds = h.Config.Review.MaxRounds
	if req.MaxRounds != nil {
		opts.MaxRounds = *req.MaxRounds
	}

	if req.ConstraintsPath != "" {
		fused, err := prompts.LoadFusedConstraints(req.ConstraintsPath)
		if err != nil {
			h.Response.FromError(c, err)
			return
		}
		opts.Constraints = fused
		opts.StyleTarget = fused.StyleTarget
		opts.Rules = fused.RulesText
	}
	if req.PlanPath != "" {
		plan, err := services.LoadPlan(req.PlanPath)
		if err != nil {
			h.Response.FromError(c, err)
			return
		}
		opts.Plan = plan
	}

	taskID := utils.NewTaskID("review")
	tracker := h.Progress.CreateTracker(taskID)
	opts.OnEpisodeDone = func(done, total int, result services.BatchResult) {
		tracker.UpdateProgress(done*100/total, reviewProgressMessage(done, total, result))
	}

	episodesDir := req.EpisodesDir
	go func() {
		ctx := context.Background()
		summary, err := h.Review.ReviewAllEpisodes(ctx, episodesDir, opts)
		if err != nil {
			h.logger.Errorf("审稿任务 %s 失败：%v", taskID, err)
			tracker.Fail(err.Error())
			return
		}
		tracker.Complete(taskCompleteMessage(summary))
	}()

	h.Response.Accepted(c, gin.H{"task_id": taskID})
}

// GetReview 返回单集的轮次日志与各轮评分产物
func (h *Handler) GetReview(c *gin.Context) {
	epNum, err := strconv.Atoi(c.Param("ep"))
	if err != nil || epNum < 0 {
		h.Response.Error(c, http.StatusBadRequest, ErrorEpisodeInvalid, "集号必须是非负整数")
		return
	}
	outputDir := c.DefaultQuery("dir", "output")

	reviewsDir := filepath.Join(outputDir, "reviews")
	logName := "ep" + strconv.Itoa(epNum) + "_log.json"
	if !h.Storage.FileExists(reviewsDir, logName) {
		h.Response.NotFound(c, ErrorReviewNotFound, "该集暂无审稿记录")
		return
	}

	roundLog := storage.NewRoundLog(h.Storage, reviewsDir, logName)
	records, err := roundLog.Records()
	if err != nil {
		h.Response.FromError(c, err)
		return
	}

	// 最后一轮评分正文（若存在）
	var lastReview *models.EpisodeReview
	if len(records) > 0 {
		name := "ep" + strconv.Itoa(epNum) + "_round" + strconv.Itoa(records[len(records)-1].Round) + "_review.json"
		var review models.EpisodeReview
		if err := h.Storage.LoadJSONFile(reviewsDir, name, &review); err == nil {
			lastReview = &review
		}
	}

	h.Response.Success(c, gin.H{
		"episode":     epNum,
		"rounds":      records,
		"last_review": lastReview,
	})
}

// GetArtifact 下载产物文件（相对存储根目录）
func (h *Handler) GetArtifact(c *gin.Context) {
	rel := strings.TrimPrefix(c.Param("path"), "/")
	if rel == "" {
		h.Response.Error(c, http.StatusBadRequest, ErrorPathInvalid, "缺少产物路径")
		return
	}

	// 拒绝目录穿越
	clean := filepath.Clean(rel)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || filepath.IsAbs(clean) {
		h.Response.Error(c, http.StatusBadRequest, ErrorPathInvalid, "产物路径不合法")
		return
	}

	dir, name := filepath.Split(clean)
	if !h.Storage.FileExists(dir, name) {
		h.Response.NotFound(c, ErrorArtifactNotFound, "产物不存在: "+clean)
		return
	}
	c.File(filepath.Join(h.Storage.BaseDir, clean))
}

// ListGenres 列出内置题材模板
func (h *Handler) ListGenres(c *gin.Context) {
	h.Response.Success(c, gin.H{
		"genres": genres.List(),
		"names":  genres.ListCN(),
		"base":   genres.Base(),
	})
}

// GetGenre 返回单个题材模板详情
func (h *Handler) GetGenre(c *gin.Context) {
	tpl, err := genres.Load(c.Param("name"))
	if err != nil {
		h.Response.NotFound(c, ErrorGenreNotFound, err.Error())
		return
	}
	h.Response.Success(c, tpl)
}

// GetProgress 返回任务进度快照
func (h *Handler) GetProgress(c *gin.Context) {
	tracker, exists := h.Progress.GetTracker(c.Param("taskID"))
	if !exists {
		h.Response.NotFound(c, ErrorTaskNotFound, "任务不存在")
		return
	}
	h.Response.Success(c, tracker.Snapshot())
}

// loadRules 按需加载三份规则文本；全部为空时返回零值规则
func (h *Handler) loadRules(c *gin.Context, rhythmPath, endHookPath, templatePath string) (models.AdaptRules, bool) {
	if rhythmPath == "" && endHookPath == "" && templatePath == "" {
		return models.AdaptRules{}, true
	}
	if rhythmPath == "" || endHookPath == "" || templatePath == "" {
		h.Response.BadRequest(c, "规则文本路径必须同时提供 rhythm_path/end_hook_path/template_path")
		return models.AdaptRules{}, false
	}
	adaptRules, err := rules.LoadRulesFromFiles(rhythmPath, endHookPath, templatePath)
	if err != nil {
		h.Response.FromError(c, err)
		return models.AdaptRules{}, false
	}
	return adaptRules, true
}

// taskCompleteMessage 汇总批量审稿结果作为任务完成消息
func taskCompleteMessage(summary *services.BatchSummary) string {
	if summary == nil {
		return ""
	}
	return "审稿完成：" + strconv.Itoa(summary.Passed) + "/" + strconv.Itoa(summary.Total) + " 集通过"
}

// reviewProgressMessage 单集完成时的进度消息
func reviewProgressMessage(done, total int, result services.BatchResult) string {
	status := "未通过"
	if result.Error != "" {
		status = "出错"
	} else if result.Passed {
		status = "通过"
	}
	return "第 " + strconv.Itoa(result.Episode) + " 集" + status +
		"（" + strconv.Itoa(done) + "/" + strconv.Itoa(total) + "）"
}
