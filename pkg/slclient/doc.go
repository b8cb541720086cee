// Package slclient provides the primary entry point for constructing a
// Sightline API client that implements the sightline.Client interface.
//
// It layers configuration, HTTP transport, and authentication on top of the
// resource interfaces and types defined in the sightline package. Most
// applications should import slclient to build a client, then use the
// returned sightline.Client to access resource-specific clients, for example
// Observations(), Entities(), Relationships(), and DataSources().
//
// Quick start
//
//	import (
//	  "context"
//	  "log"
//
//	  "github.com/sightline-io/sightline-go/pkg/sightline"
//	  "github.com/sightline-io/sightline-go/pkg/slclient"
//	)
//
//	func example() {
//	  ctx := context.Background()
//
//	  // With an API key, exchanged for short-lived session tokens:
//	  cli, err := slclient.New(ctx, &sightline.Config{
//	    APIEndpoint: "https://api.sightline.example",
//	    APIKey:      "sk-...",
//	  })
//	  if err != nil { log.Fatal(err) }
//
//	  // Or with an access token you already have:
//	  cli, err = slclient.New(ctx, &sightline.Config{
//	    APIEndpoint: "https://api.sightline.example",
//	    AccessToken: "eyJhbGciOi...", // bearer token
//	  })
//	  if err != nil { log.Fatal(err) }
//
//	  // Use resource clients via the sightline.Client interface
//	  sources, err := cli.DataSources().List(ctx, sightline.NewListQuery().WithLimit(10))
//	  if err != nil { log.Fatal(err) }
//	  _ = sources
//	}
//
// # TLS and development mode
//
// For local development, you can set Config.SkipTLSVerify=true. This is gated
// by the environment variable SIGHTLINE_DEV_MODE to avoid accidental insecure
// usage in production environments.
//
// # Helpers
//
// The package also provides convenience constructors NewWithEndpoint,
// NewWithToken, and NewWithAPIKey that wrap New with the appropriate
// configuration.
package slclient
