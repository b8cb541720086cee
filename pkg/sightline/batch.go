package sightline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sightline-io/sightline-go/internal/constants"
)

// Static errors for err113 compliance.
var (
	ErrUnsupportedResourceType    = errors.New("unsupported resource type")
	ErrUnsupportedOperationType   = errors.New("unsupported operation type")
	ErrInvalidDataTypeObservation = errors.New("invalid data type for observation operation")
	ErrInvalidDataTypeEntity      = errors.New("invalid data type for entity operation")
)

// BatchOperation represents a single operation in a batch.
type BatchOperation struct {
	ID       string
	Type     string // "register", "get"
	Resource string // "observation", "entity"
	Data     interface{}
	Callback func(result *BatchResult)
}

// BatchResult represents the result of a batch operation.
type BatchResult struct {
	ID       string
	Success  bool
	Data     interface{}
	Error    error
	Duration time.Duration
}

// BatchExecutor executes batch operations with bounded concurrency. Results
// are returned in operation order regardless of completion order.
type BatchExecutor struct {
	client      Client
	concurrency int
	timeout     time.Duration
}

// NewBatchExecutor creates a new batch executor.
func NewBatchExecutor(client Client, concurrency int) *BatchExecutor {
	if concurrency <= 0 {
		concurrency = constants.DefaultBatchWorkers
	}

	if concurrency > constants.MaxBatchWorkers {
		concurrency = constants.MaxBatchWorkers
	}

	return &BatchExecutor{
		client:      client,
		concurrency: concurrency,
		timeout:     constants.DefaultHTTPTimeout,
	}
}

// NewBatchExecutorFromConfig creates an executor sized by the
// configuration's BatchWorkers setting. The configuration's HTTPTimeout,
// when set, bounds each operation.
func NewBatchExecutorFromConfig(client Client, config *Config) *BatchExecutor {
	if config == nil {
		return NewBatchExecutor(client, 0)
	}

	executor := NewBatchExecutor(client, config.BatchWorkers)
	if config.HTTPTimeout > 0 {
		executor.SetTimeout(config.HTTPTimeout)
	}

	return executor
}

// SetTimeout sets the timeout for batch operations.
func (b *BatchExecutor) SetTimeout(timeout time.Duration) {
	b.timeout = timeout
}

// Execute runs a batch of operations.
func (b *BatchExecutor) Execute(ctx context.Context, operations []BatchOperation) ([]BatchResult, error) {
	results := make([]BatchResult, len(operations))

	var waitGroup sync.WaitGroup

	semaphore := make(chan struct{}, b.concurrency)

	for index, operation := range operations {
		waitGroup.Add(1)

		go func(index int, operation BatchOperation) {
			defer waitGroup.Done()

			// Acquire semaphore
			semaphore <- struct{}{}

			defer func() { <-semaphore }()

			// Execute operation with timeout
			opCtx, cancel := context.WithTimeout(ctx, b.timeout)
			defer cancel()

			start := time.Now()
			result := b.executeOperation(opCtx, operation)
			result.Duration = time.Since(start)
			results[index] = *result

			// Call callback if provided
			if operation.Callback != nil {
				operation.Callback(result)
			}
		}(index, operation)
	}

	waitGroup.Wait()

	return results, nil
}

// executeOperation executes a single operation.
func (b *BatchExecutor) executeOperation(ctx context.Context, operation BatchOperation) *BatchResult {
	switch operation.Resource {
	case "observation":
		return b.executeObservationOperation(ctx, operation)
	case "entity":
		return b.executeEntityOperation(ctx, operation)
	default:
		return &BatchResult{
			ID:    operation.ID,
			Error: fmt.Errorf("%w: %s", ErrUnsupportedResourceType, operation.Resource),
		}
	}
}

// executeObservationOperation handles observation registrations and reads.
func (b *BatchExecutor) executeObservationOperation(ctx context.Context, operation BatchOperation) *BatchResult {
	result := &BatchResult{ID: operation.ID}

	switch operation.Type {
	case "register":
		form, ok := operation.Data.(*GenericObservationForm)
		if !ok {
			result.Error = fmt.Errorf("%w register", ErrInvalidDataTypeObservation)

			return result
		}

		data, err := b.client.Observations().Register(ctx, form)
		result.Success = err == nil
		result.Data = data
		result.Error = err
	case "get":
		id, ok := operation.Data.(uuid.UUID)
		if !ok {
			result.Error = fmt.Errorf("%w get", ErrInvalidDataTypeObservation)

			return result
		}

		data, err := b.client.Observations().Get(ctx, id)
		result.Success = err == nil
		result.Data = data
		result.Error = err
	default:
		result.Error = fmt.Errorf("%w: %s", ErrUnsupportedOperationType, operation.Type)
	}

	return result
}

// executeEntityOperation handles entity registrations and reads.
func (b *BatchExecutor) executeEntityOperation(ctx context.Context, operation BatchOperation) *BatchResult {
	result := &BatchResult{ID: operation.ID}

	switch operation.Type {
	case "register":
		entity, ok := operation.Data.(*Entity)
		if !ok {
			result.Error = fmt.Errorf("%w register", ErrInvalidDataTypeEntity)

			return result
		}

		data, err := b.client.Entities().Register(ctx, entity)
		result.Success = err == nil
		result.Data = data
		result.Error = err
	case "get":
		id, ok := operation.Data.(uuid.UUID)
		if !ok {
			result.Error = fmt.Errorf("%w get", ErrInvalidDataTypeEntity)

			return result
		}

		data, err := b.client.Entities().Get(ctx, id)
		result.Success = err == nil
		result.Data = data
		result.Error = err
	default:
		result.Error = fmt.Errorf("%w: %s", ErrUnsupportedOperationType, operation.Type)
	}

	return result
}

// BatchBuilder helps build batch operations.
type BatchBuilder struct {
	operations []BatchOperation
}

// NewBatchBuilder creates a new batch builder.
func NewBatchBuilder() *BatchBuilder {
	return &BatchBuilder{
		operations: make([]BatchOperation, 0),
	}
}

// AddRegisterObservation adds an observation registration operation.
func (b *BatchBuilder) AddRegisterObservation(id string, form *GenericObservationForm) *BatchBuilder {
	b.operations = append(b.operations, BatchOperation{
		ID:       id,
		Type:     "register",
		Resource: "observation",
		Data:     form,
	})

	return b
}

// AddGetObservation adds an observation read operation.
func (b *BatchBuilder) AddGetObservation(id string, observationID uuid.UUID) *BatchBuilder {
	b.operations = append(b.operations, BatchOperation{
		ID:       id,
		Type:     "get",
		Resource: "observation",
		Data:     observationID,
	})

	return b
}

// AddRegisterEntity adds an entity registration operation.
func (b *BatchBuilder) AddRegisterEntity(id string, entity *Entity) *BatchBuilder {
	b.operations = append(b.operations, BatchOperation{
		ID:       id,
		Type:     "register",
		Resource: "entity",
		Data:     entity,
	})

	return b
}

// AddGetEntity adds an entity read operation.
func (b *BatchBuilder) AddGetEntity(id string, entityID uuid.UUID) *BatchBuilder {
	b.operations = append(b.operations, BatchOperation{
		ID:       id,
		Type:     "get",
		Resource: "entity",
		Data:     entityID,
	})

	return b
}

// AddOperation adds a custom operation.
func (b *BatchBuilder) AddOperation(operation BatchOperation) *BatchBuilder {
	b.operations = append(b.operations, operation)

	return b
}

// Build returns the built operations.
func (b *BatchBuilder) Build() []BatchOperation {
	return b.operations
}

// BatchReport summarizes batch results. Registration cannot be undone, so
// failed items are reported for resubmission rather than rolled back.
type BatchReport struct {
	results []BatchResult
}

// NewBatchReport wraps executed results for inspection.
func NewBatchReport(results []BatchResult) *BatchReport {
	return &BatchReport{results: results}
}

// Succeeded returns the results that completed without error.
func (r *BatchReport) Succeeded() []BatchResult {
	var succeeded []BatchResult

	for _, result := range r.results {
		if result.Success {
			succeeded = append(succeeded, result)
		}
	}

	return succeeded
}

// Failed returns the results that ended in error.
func (r *BatchReport) Failed() []BatchResult {
	var failed []BatchResult

	for _, result := range r.results {
		if !result.Success {
			failed = append(failed, result)
		}
	}

	return failed
}

// FirstError returns the first failure in operation order, or nil.
func (r *BatchReport) FirstError() error {
	for _, result := range r.results {
		if result.Error != nil {
			return result.Error
		}
	}

	return nil
}

// RegisterObservations registers the forms with bounded concurrency and
// returns per-form results in input order.
func RegisterObservations(ctx context.Context, client Client, forms []*GenericObservationForm, concurrency int) ([]BatchResult, error) {
	builder := NewBatchBuilder()
	for i, form := range forms {
		builder.AddRegisterObservation(fmt.Sprintf("observation-%d", i), form)
	}

	executor := NewBatchExecutor(client, concurrency)

	return executor.Execute(ctx, builder.Build())
}
