package api

// HTTP пути Session Gateway
const (
	PathRegister     = "/register"
	PathLogin        = "/login"
	PathResendCode   = "/resend-code"
	PathVerify       = "/verify"
	PathRefreshToken = "/refresh-token"
	PathLogout       = "/logout"
	PathTestAuth     = "/test-auth"
	PathHealth       = "/health"
)
