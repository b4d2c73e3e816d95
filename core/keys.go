package core

// Cache key namespaces shared with other services reading the same cache.
const (
	SmsLoginCodePrefix     = "captcha:sms_login:"
	SmsLoginAttemptsPrefix = "captcha:sms_login_attempts:"
	CaptchaCodePrefix      = "captcha:image:"
	TokenBlacklistPrefix   = "auth:token:blacklist:"
)

func SmsLoginCodeKey(mobile string) string {
	return SmsLoginCodePrefix + mobile
}

func SmsLoginAttemptsKey(mobile string) string {
	return SmsLoginAttemptsPrefix + mobile
}

func CaptchaCodeKey(captchaKey string) string {
	return CaptchaCodePrefix + captchaKey
}

func TokenBlacklistKey(tokenID string) string {
	return TokenBlacklistPrefix + tokenID
}
