package api

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/valyala/fasthttp"
)

const formContentType = "application/x-www-form-urlencoded"

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// LoginForm 登录表单
type LoginForm struct {
	Username  string `validate:"required" error_msg:"required:用户名必填"`
	Password  string `validate:"required" error_msg:"required:密码必填"`
	AndroidID string // 可选，客户端设备 ID
}

// RegisterForm 注册表单
type RegisterForm struct {
	Username    string `validate:"required" error_msg:"required:用户名必填"`
	Password    string `validate:"required" error_msg:"required:密码必填"`
	Nickname    string `validate:"required" error_msg:"required:昵称必填"`
	Description string
}

// Upload 上传文件
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// UpdateUserForm 资料更新。Nickname 与 Avatar 均可选。
type UpdateUserForm struct {
	Name     string `validate:"required" error_msg:"required:用户名必填"`
	Token    string `validate:"required" error_msg:"required:token 必填"`
	Nickname string
	Avatar   *Upload
}

// UsernameTaken 用户名占用状态；调用失败或响应无法分类时返回 nil，
// 调用方据此区分"未占用"与"没拿到答案"
func (c *Client) UsernameTaken(ctx context.Context, username string) *bool {
	return readOne[bool](ctx, c, call{
		op:     "username_exists",
		method: fasthttp.MethodGet,
		url:    build(c.users, (&params{}).add("username", username), "stated-name"),
	})
}

// NicknameTaken 昵称占用状态，语义同 UsernameTaken
func (c *Client) NicknameTaken(ctx context.Context, nickname string) *bool {
	return readOne[bool](ctx, c, call{
		op:     "nickname_exists",
		method: fasthttp.MethodGet,
		url:    build(c.users, (&params{}).add("nickname", nickname), "stated-nickname"),
	})
}

// UsernameExists 用户名是否已被占用，失败视为未占用
func (c *Client) UsernameExists(ctx context.Context, username string) bool {
	return isTrue(c.UsernameTaken(ctx, username))
}

// NicknameExists 昵称是否已被占用，失败视为未占用
func (c *Client) NicknameExists(ctx context.Context, nickname string) bool {
	return isTrue(c.NicknameTaken(ctx, nickname))
}

// Login 登录，成功返回带 AccessToken 的用户
func (c *Client) Login(ctx context.Context, f LoginForm) *User {
	if err := c.validator.Validate(&f); err != nil {
		c.invalid(ctx, "login", err)
		return nil
	}
	form := url.Values{}
	form.Set("username", f.Username)
	form.Set("password", f.Password)
	if f.AndroidID != "" {
		form.Set("android_id", f.AndroidID)
	}
	return mutateOne[User](ctx, c, call{
		op:          "login",
		method:      fasthttp.MethodPost,
		url:         build(c.users, nil, "login"),
		contentType: formContentType,
		body:        []byte(form.Encode()),
	})
}

// Register 注册
func (c *Client) Register(ctx context.Context, f RegisterForm) *User {
	if err := c.validator.Validate(&f); err != nil {
		c.invalid(ctx, "register", err)
		return nil
	}
	form := url.Values{}
	form.Set("username", f.Username)
	form.Set("password", f.Password)
	form.Set("nickname", f.Nickname)
	if f.Description != "" {
		form.Set("description", f.Description)
	}
	return mutateOne[User](ctx, c, call{
		op:          "register",
		method:      fasthttp.MethodPost,
		url:         build(c.users, nil, "register"),
		contentType: formContentType,
		body:        []byte(form.Encode()),
	})
}

// UpdateUser 更新昵称 / 头像（multipart）
func (c *Client) UpdateUser(ctx context.Context, f UpdateUserForm) *User {
	if err := c.validator.Validate(&f); err != nil {
		c.invalid(ctx, "update_user", err)
		return nil
	}
	body, contentType, err := multipartBody(f)
	if err != nil {
		c.invalid(ctx, "update_user", err)
		return nil
	}
	return mutateOne[User](ctx, c, call{
		op:          "update_user",
		method:      fasthttp.MethodPost,
		url:         build(c.users, nil, "updated", f.Name, f.Token),
		token:       f.Token,
		contentType: contentType,
		body:        body,
	})
}

func multipartBody(f UpdateUserForm) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if f.Nickname != "" {
		if err := w.WriteField("nickname", f.Nickname); err != nil {
			return nil, "", err
		}
	}
	if f.Avatar != nil && len(f.Avatar.Data) > 0 {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="avatar_file"; filename="%s"`, quoteEscaper.Replace(f.Avatar.Filename)))
		ct := f.Avatar.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(f.Avatar.Data); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
