package database

// Repositories aggregates every repository over a single Client,
// matching the construction style used throughout this codebase.
type Repositories struct {
	Transactions *TransactionRepository
	Processing   *ProcessingRepository
}

// NewRepositories constructs every repository over client.
func NewRepositories(client *Client) *Repositories {
	return &Repositories{
		Transactions: NewTransactionRepository(client),
		Processing:   NewProcessingRepository(client),
	}
}
