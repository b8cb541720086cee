// Package sightline provides types, interfaces, and helpers for working with
// the Sightline threat intelligence API.
//
// # Overview
//
// The sightline package defines the domain types (e.g., Entity,
// GenericObservationForm, AttributeForecastView) and the interfaces for
// resource-oriented clients (e.g., ObservationsClient, EntitiesClient). A
// concrete implementation of these clients is provided by the slclient
// package, which wires configuration, transport, and authentication. Most
// consumers should import slclient to construct a client and then interact
// with the resource client interfaces exposed here.
//
// Registering an observation
//
//	import (
//	  "context"
//	  "log"
//	  "time"
//
//	  "github.com/sightline-io/sightline-go/pkg/sightline"
//	  "github.com/sightline-io/sightline-go/pkg/slclient"
//	)
//
//	func example() {
//	  ctx := context.Background()
//	  cli, err := slclient.NewWithAPIKey("https://api.sightline.example", "key")
//	  if err != nil { log.Fatal(err) }
//
//	  domain := sightline.NewEntity(sightline.EntityTypeDomainName)
//	  if err := domain.AddKey(sightline.EntityKeyTypeString, "test.com"); err != nil { log.Fatal(err) }
//
//	  form := sightline.NewGenericObservationForm()
//	  _ = form.SetShareLevel(sightline.ShareLevelGreen)
//	  _ = form.SetSeenAt(time.Now())
//	  _ = form.AddAttributeFact(domain, sightline.AttributeNameIsIoC, true, 0.9)
//
//	  ref, err := cli.Observations().Register(ctx, form)
//	  if err != nil { log.Fatal(err) }
//	  _ = ref
//	}
//
// # Queries and pagination
//
// Use ListQuery to express common list options (limit, cursor, entity and
// data source filters, seen-at windows). The package also provides helpers
// for iterating or collecting cursor-paginated results:
//
//	it := sightline.NewPaginationIterator(ctx, cli.Observations(), "/observations/generic", sightline.NewListQuery())
//	for it.HasNext() {
//	  observation, err := it.Next()
//	  if err != nil { break }
//	  _ = observation
//	}
//
// or fetch all results at once:
//
//	all, err := sightline.FetchAllPages(ctx, cli.Observations(), "/observations/generic", nil, sightline.DefaultPaginationOptions())
//	if err != nil { /* handle error */ }
//	_ = all
//
// # Errors
//
// Input problems surface as typed validation errors (InvalidKeyTypeError,
// InvalidConfidenceError, IncompleteObservationError, and friends) before
// any request is sent. API errors are represented by ClientRequestError,
// NotFoundError, and ServiceUnavailableError carrying the server's ErrorView
// body. Helpers such as IsValidation, IsNotFound, and IsTimeout make it easy
// to branch on common cases.
//
// # Interceptors and caching
//
// The package includes generic building blocks such as request/response
// interceptors (for logging, auth headers, metrics, rate limiting, circuit
// breaking) and a simple pluggable Cache abstraction with in-memory and NATS
// key-value backends. The slclient package composes these pieces for a
// sensible default client; applications with advanced needs can also use
// these primitives directly.
package sightline
