// Package pryvclient provides the primary entry point for constructing
// platform connections and services that implement the pryv.Connection and
// pryv.Service interfaces.
//
// Quick start
//
//	import (
//	  "context"
//	  "log"
//
//	  "github.com/fivetwenty-io/pryv-client/pkg/pryv"
//	  "github.com/fivetwenty-io/pryv-client/pkg/pryvclient"
//	)
//
//	func example() {
//	  ctx := context.Background()
//
//	  // With an endpoint you already have, token included:
//	  conn, err := pryvclient.NewWithEndpoint("https://ck6bwmcar00041ep87c8ujf90@tom.pryv.me/")
//	  if err != nil { log.Fatal(err) }
//
//	  // Or through the platform's discovery document and a login:
//	  service, err := pryvclient.NewServiceWithURL("https://reg.pryv.me/service/info")
//	  if err != nil { log.Fatal(err) }
//
//	  conn, err = service.Login(ctx, "tom", "password", "my-app-id", "")
//	  if err != nil { log.Fatal(err) }
//
//	  // Batch calls are chunked transparently (1000 calls per request by default).
//	  results, err := conn.API(ctx, []pryv.MethodCall{
//	    {Method: "events.get", Params: map[string]any{"limit": 10}},
//	    {Method: "streams.get"},
//	  })
//	  if err != nil { log.Fatal(err) }
//	  _ = results
//	}
//
// # Discovery cache
//
// ServiceConfig.Cache lets several services, or several processes, share one
// fetch of the discovery document. pryv.OpenCache builds an in-memory cache
// or a NATS JetStream key-value cache behind an in-memory tier. Refreshes send
// the stored ETag, so an unchanged document costs a 304.
//
// # Helpers
//
// The package also provides convenience constructors NewWithEndpoint,
// NewWithToken, NewServiceWithURL and Login.
package pryvclient
