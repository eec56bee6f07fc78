package roster

import "context"

// ExtractionService turns free text into candidate names with quality metadata.
type ExtractionService interface {
	Extract(ctx context.Context, text string) (ServiceResponse, error)
}

// AccountCreator creates one account per call. There is no batch API.
type AccountCreator interface {
	Create(ctx context.Context, record Record) error
}

type CredentialGenerator interface {
	NewID() string
	Password() string
	Username(firstName, lastInitial string) string
	LinkingCode() string
}
