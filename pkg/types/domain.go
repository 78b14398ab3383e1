package types

// HealthResponse is the body served by the backend at GET /health.
type HealthResponse struct {
	// example: ok
	Status string `json:"status" example:"ok"`
	// example: true
	ModelLoaded bool `json:"model_loaded" example:"true"`
}

// TranslateRequest is posted to the backend at POST /translate.
type TranslateRequest struct {
	// Text to translate.
	// example: Hello, world
	Text string `json:"text" example:"Hello, world"`
	// ISO 639-1 source language code.
	// example: en
	SourceLang string `json:"source_lang,omitempty" example:"en"`
	// Target language code.
	// example: zh-TW
	TargetLang string `json:"target_lang,omitempty" example:"zh-TW"`
}

// TranslateResponse is returned by the backend for a successful translation.
type TranslateResponse struct {
	Translation string `json:"translation"`
	SourceLang  string `json:"source_lang"`
	TargetLang  string `json:"target_lang"`
	Model       string `json:"model"`
}
