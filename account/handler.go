package account

import (
	"context"
	stderrors "errors"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/aisgo/vlog-gateway/api"
	"github.com/aisgo/vlog-gateway/challenge"
	"github.com/aisgo/vlog-gateway/errors"
	"github.com/aisgo/vlog-gateway/logger"
	"github.com/aisgo/vlog-gateway/response"
	"github.com/aisgo/vlog-gateway/retry"
	"github.com/aisgo/vlog-gateway/validator"
)

/* ========================================================================
 * Account Endpoints - 账号相关 JSON 接口
 * ========================================================================
 * 职责: 验证码签发、用户名 / 昵称占用检查、带验证码的注册、登录
 * 约定:
 *   - 占用检查只在没拿到答案时重试，"未占用"是有效答案
 *   - 注册 / 登录只尝试一次（非幂等）
 *   - 上游失败统一返回 503，不暴露上游细节
 * ======================================================================== */

// usernameRule 用户名只允许 ASCII 字母和数字
const usernameRule = "required,alphanum"

// Backend 账号接口依赖的上游操作，*api.Client 实现
type Backend interface {
	UsernameTaken(ctx context.Context, username string) *bool
	NicknameTaken(ctx context.Context, nickname string) *bool
	Register(ctx context.Context, f api.RegisterForm) *api.User
	Login(ctx context.Context, f api.LoginForm) *api.User
}

// Handler 账号接口
type Handler struct {
	backend    Backend
	challenges *challenge.Service
	policy     *retry.Policy
	validator  *validator.Validator
	log        *logger.Logger
}

// New 创建处理器
func New(backend Backend, challenges *challenge.Service, policy *retry.Policy, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.NewNop()
	}
	return &Handler{
		backend:    backend,
		challenges: challenges,
		policy:     policy,
		validator:  validator.New(),
		log:        log,
	}
}

// Params FX 依赖
type Params struct {
	fx.In
	App        *fiber.App
	Client     *api.Client
	Challenges *challenge.Service
	Policy     *retry.Policy
	Logger     *logger.Logger
}

// Module FX 模块
var Module = fx.Module("account",
	fx.Invoke(func(p Params) {
		New(p.Client, p.Challenges, p.Policy, p.Logger).Register(p.App)
	}),
)

// Register 挂载 /account 路由
func (h *Handler) Register(router fiber.Router) {
	grp := router.Group("/account")
	grp.Get("/challenge", h.issueChallenge)
	grp.Get("/check-username", h.checkUsername)
	grp.Get("/check-nickname", h.checkNickname)
	grp.Post("/register", h.register)
	grp.Post("/login", h.login)
}

/* ========================================================================
 * Handlers
 * ======================================================================== */

// ChallengeResponse 验证码。客户端自行渲染 code。
type ChallengeResponse struct {
	ID   string `json:"id"`
	Code string `json:"code"`
}

func (h *Handler) issueChallenge(c fiber.Ctx) error {
	id, code, err := h.challenges.Issue(c.Context())
	if err != nil {
		return response.Error(c, err)
	}
	return response.OkWithData(c, ChallengeResponse{ID: id, Code: code})
}

// CheckResponse 占用检查结果
type CheckResponse struct {
	Exists  bool   `json:"exists"`
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}

func (h *Handler) checkUsername(c fiber.Ctx) error {
	username := c.Query("username")
	if h.validator.Var(username, usernameRule) != nil {
		return response.OkWithData(c, CheckResponse{Message: "用户名只能包含字母和数字"})
	}
	exists, err := h.exists(c.Context(), username, h.backend.UsernameTaken)
	if err != nil {
		return response.Error(c, err)
	}
	msg := "用户名可用"
	if exists {
		msg = "用户名已存在"
	}
	return response.OkWithData(c, CheckResponse{Exists: exists, Valid: true, Message: msg})
}

func (h *Handler) checkNickname(c fiber.Ctx) error {
	nickname := c.Query("nickname")
	if nickname == "" {
		return response.OkWithData(c, CheckResponse{Message: "昵称不能为空"})
	}
	exists, err := h.exists(c.Context(), nickname, h.backend.NicknameTaken)
	if err != nil {
		return response.Error(c, err)
	}
	msg := "昵称可用"
	if exists {
		msg = "昵称已存在"
	}
	return response.OkWithData(c, CheckResponse{Exists: exists, Valid: true, Message: msg})
}

// exists nil 表示没拿到答案，只有这种情况重试；重试耗尽返回 503
func (h *Handler) exists(ctx context.Context, name string, taken func(ctx context.Context, name string) *bool) (bool, error) {
	v, ok, err := retry.Do(ctx, h.policy, retry.FromPointer(func(ctx context.Context) *bool {
		return taken(ctx, name)
	}))
	if err != nil {
		return false, errors.Wrap(errors.ErrCodeCanceled, "request canceled", err)
	}
	if !ok {
		return false, errors.New(errors.ErrCodeUnavailable, "暂时无法检查，请稍后再试")
	}
	return *v, nil
}

// RegisterRequest 注册表单
type RegisterRequest struct {
	Username        string `form:"username" validate:"required,alphanum" error_msg:"required:用户名必填|alphanum:用户名只能包含字母和数字"`
	Password        string `form:"password" validate:"required,min=6" error_msg:"required:密码必填|min:密码至少需要6位"`
	ConfirmPassword string `form:"confirm_password" validate:"required" error_msg:"required:请再次输入密码"`
	Nickname        string `form:"nickname" validate:"required" error_msg:"required:昵称必填"`
	Description     string `form:"description"`
	ChallengeID     string `form:"challenge_id" validate:"required" error_msg:"required:验证码已失效，请刷新"`
	Challenge       string `form:"challenge" validate:"required" error_msg:"required:验证码必填"`
}

func (h *Handler) register(c fiber.Ctx) error {
	var req RegisterRequest
	if err := c.Bind().Form(&req); err != nil {
		return response.Error(c, errors.Wrap(errors.ErrCodeInvalidArgument, "invalid form", err))
	}
	if err := h.validate(&req); err != nil {
		return response.Error(c, err)
	}
	if req.ConfirmPassword != req.Password {
		return response.Error(c, errors.New(errors.ErrCodeInvalidArgument, "两次输入的密码不一致"))
	}

	ctx := c.Context()
	ok, err := h.challenges.Verify(ctx, req.ChallengeID, req.Challenge)
	if err != nil {
		return response.Error(c, err)
	}
	if !ok {
		return response.Error(c, errors.New(errors.ErrCodeInvalidArgument, "验证码错误或已过期"))
	}

	if taken, err := h.exists(ctx, req.Username, h.backend.UsernameTaken); err != nil {
		return response.Error(c, err)
	} else if taken {
		return response.Error(c, errors.New(errors.ErrCodeAlreadyExists, "用户名已存在"))
	}
	if taken, err := h.exists(ctx, req.Nickname, h.backend.NicknameTaken); err != nil {
		return response.Error(c, err)
	} else if taken {
		return response.Error(c, errors.New(errors.ErrCodeAlreadyExists, "昵称已存在"))
	}

	user := h.backend.Register(ctx, api.RegisterForm{
		Username:    req.Username,
		Password:    req.Password,
		Nickname:    req.Nickname,
		Description: req.Description,
	})
	if user == nil {
		h.log.WithContext(ctx).Warn("Registration failed", zap.String("username", req.Username))
		return response.Error(c, errors.New(errors.ErrCodeUnavailable, "注册失败，请稍后再试"))
	}
	return response.OkWithData(c, user)
}

// LoginRequest 登录表单
type LoginRequest struct {
	Username  string `form:"username" validate:"required" error_msg:"required:用户名必填"`
	Password  string `form:"password" validate:"required" error_msg:"required:密码必填"`
	AndroidID string `form:"android_id"`
}

func (h *Handler) login(c fiber.Ctx) error {
	var req LoginRequest
	if err := c.Bind().Form(&req); err != nil {
		return response.Error(c, errors.Wrap(errors.ErrCodeInvalidArgument, "invalid form", err))
	}
	if err := h.validate(&req); err != nil {
		return response.Error(c, err)
	}

	user := h.backend.Login(c.Context(), api.LoginForm(req))
	if user == nil {
		return response.Error(c, errors.New(errors.ErrCodeUnauthenticated, "用户名或密码错误"))
	}
	return response.OkWithData(c, user)
}

// validate 校验失败时只把第一条消息返回给用户
func (h *Handler) validate(req any) error {
	err := h.validator.Validate(req)
	if err == nil {
		return nil
	}
	var verr *validator.ValidationError
	if stderrors.As(err, &verr) {
		return errors.Wrap(errors.ErrCodeInvalidArgument, verr.First(), err)
	}
	return errors.Wrap(errors.ErrCodeInvalidArgument, "invalid form", err)
}
