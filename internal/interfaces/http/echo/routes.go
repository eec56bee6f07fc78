package echo

import e "github.com/labstack/echo/v4"

func RegisterRoutes(server *e.Echo, h *WizardHandler) {
	server.POST("/api/v1/sessions", h.CreateSession)

	s := server.Group("/api/v1/sessions/:id")
	s.GET("", h.GetSession)
	s.POST("/account-type", h.SelectAccountType)
	s.PUT("/input", h.SetInput)
	s.POST("/input/file", h.UploadInput)
	s.POST("/input/submit", h.SubmitInput)
	s.POST("/extraction/accept", h.AcceptExtraction)
	s.POST("/extraction/reject", h.RejectExtraction)
	s.POST("/records", h.AddRecord)
	s.PATCH("/records/:recordID", h.UpdateRecord)
	s.DELETE("/records/:recordID", h.RemoveRecord)
	s.POST("/records/:recordID/password", h.RegeneratePassword)
	s.POST("/confirm", h.ConfirmRoster)
	s.GET("/provisioning", h.GetProvisioning)
	s.POST("/provisioning/retry", h.RetryFailed)
	s.POST("/provisioning/:index/retry", h.RetryOne)
	s.GET("/credentials.xlsx", h.ExportCredentials)
	s.POST("/link/done", h.FinishLinking)
	s.POST("/back", h.Back)
	s.POST("/close", h.Close)
	s.POST("/close/cancel", h.CancelClose)
}
