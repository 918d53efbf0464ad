package httpapi

import "github.com/gin-gonic/gin"

// envelope mirrors the response shape the web clients already consume:
// statusCode, data, message, success.
type envelope struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

func respond(c *gin.Context, status int, data any, message string) {
	c.JSON(status, envelope{
		StatusCode: status,
		Data:       data,
		Message:    message,
		Success:    status < 400,
	})
}

// failureEnvelope is the error shape the web clients consume: statusCode,
// message, success, and an errors list that serializes as [] when empty.
type failureEnvelope struct {
	StatusCode int      `json:"statusCode"`
	Message    string   `json:"message"`
	Success    bool     `json:"success"`
	Errors     []string `json:"errors"`
}

func fail(c *gin.Context, status int, message string, errs ...string) {
	if errs == nil {
		errs = []string{}
	}
	c.JSON(status, failureEnvelope{
		StatusCode: status,
		Message:    message,
		Success:    false,
		Errors:     errs,
	})
}
