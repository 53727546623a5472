package service

import (
	"context"
	"errors"
	"strings"
)

// User-facing auth messages. These surface directly in API responses, so
// wording stays aligned with the front end.
const (
	msgProviderMissing = "认证服务未配置，认证功能不可用"

	msgInvalidCredentials = "邮箱或密码错误，请检查后重试"
	msgEmailNotConfirmed  = "您的邮箱尚未验证，请检查邮箱并点击验证链接"
	msgRateLimited        = "请求过于频繁，请稍后再试"
	msgRequestTimeout     = "请求超时，请稍后重试"
	msgSignInFailed       = "登录失败，请稍后重试"

	msgAlreadyRegistered = "该邮箱已被注册，请直接登录或使用其他邮箱"
	msgWeakPassword      = "密码长度不符合要求，请设置至少8位密码"
	msgSignUpFailed      = "注册失败，请稍后重试"
	msgCheckYourEmail    = "注册成功，请检查您的邮箱完成验证"

	msgInvalidEmail     = "邮箱格式不正确"
	msgPasswordTooShort = "密码长度不能少于8位"
	msgPasswordTooLong  = "密码长度不能超过16位"
	msgPasswordMismatch = "两次输入的密码不匹配"
)

// providerErrorRules maps well-known identity-provider error fragments to
// their user-facing message. GoTrue reports these as plain English strings,
// so matching is by substring rather than error code.
var providerErrorRules = []struct {
	fragment string
	message  string
}{
	{"Invalid login credentials", msgInvalidCredentials},
	{"Email not confirmed", msgEmailNotConfirmed},
	{"Too many requests", msgRateLimited},
	{"User already registered", msgAlreadyRegistered},
	{"Password should be at least", msgWeakPassword},
}

// translateProviderError classifies an identity-provider error into a
// user-facing message. Timeouts get a dedicated message; unrecognized errors
// pass through verbatim so upstream detail is not lost, with fallback used
// only when the error carries no text at all.
func translateProviderError(err error, fallback string) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return msgRequestTimeout
	}

	text := err.Error()
	for _, rule := range providerErrorRules {
		if strings.Contains(text, rule.fragment) {
			return rule.message
		}
	}
	if text == "" {
		return fallback
	}
	return text
}
