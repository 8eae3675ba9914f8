package dto

// Response represents a standard API response envelope
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
}

// ErrorInfo represents error details
type ErrorInfo struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	RequestID string            `json:"request_id,omitempty"`
	Details   []ValidationError `json:"details,omitempty"`
}

// ValidationError describes one rejected request field
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// NewSuccessResponse creates a success response
func NewSuccessResponse(data interface{}) Response {
	return Response{
		Success: true,
		Data:    data,
	}
}

// NewErrorResponse creates an error response
func NewErrorResponse(code, message, requestID string) Response {
	return Response{
		Success: false,
		Error: &ErrorInfo{
			Code:      code,
			Message:   message,
			RequestID: requestID,
		},
	}
}

// TransferRequest is the body of POST /transactions/transfer
type TransferRequest struct {
	Payer string `json:"payer" binding:"required,uuid"`
	Payee string `json:"payee" binding:"required,uuid"`
	Value int64  `json:"value" binding:"required,gt=0"`
}

// TransferResponse is returned for a completed or replayed transfer
type TransferResponse struct {
	Message     string      `json:"message"`
	Transaction interface{} `json:"transaction"`
}

// RegisterRequest is the body of POST /auth/register
type RegisterRequest struct {
	Name            string `json:"name" binding:"required,min=2,max=100"`
	Email           string `json:"email" binding:"required,email,max=200"`
	Password        string `json:"password" binding:"required,min=8,max=72,password"`
	ConfirmPassword string `json:"confirmPassword" binding:"required,eqfield=Password"`
	DocumentType    string `json:"documentType" binding:"required,oneof=COMMON MERCHANT"`
	DocumentNumber  string `json:"documentNumber" binding:"required,document"`
}

// LoginRequest is the body of POST /auth/login. Email may also carry a document number.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}
