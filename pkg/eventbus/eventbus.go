/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package eventbus is the opaque Event Client collaborator (§1 Out of
// scope): publishing EnvironmentDefined and looking up upstream events by
// GraphQL. The wire shape (meta/data/links) is modeled on the Eiffel event
// protocol this system's events belong to, hand-rolled here since the SDK
// itself isn't importable without network access (see DESIGN.md).
package eventbus

import (
	"context"
	"time"

	"github.com/machinebox/graphql"
)

// Meta is the common envelope every Eiffel-style event carries.
type Meta struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Time int64  `json:"time"`
}

// Links maps a link type (e.g. "CONTEXT") to the event id it points at.
type Links map[string]string

// EnvironmentDefinedData is the event-specific payload (§6.4).
type EnvironmentDefinedData struct {
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// EnvironmentDefined is the event the Publisher emits exactly once per
// sub-suite; Meta.ID equals the sub-suite's unique environment id, giving
// the at-most-once guarantee its uniqueness constraint enforces downstream.
type EnvironmentDefined struct {
	Meta  Meta                   `json:"meta"`
	Links Links                  `json:"links"`
	Data  EnvironmentDefinedData `json:"data"`
}

// NewEnvironmentDefined builds the event for one published sub-suite.
func NewEnvironmentDefined(envID, contextID, name, uri string) EnvironmentDefined {
	return EnvironmentDefined{
		Meta:  Meta{ID: envID, Type: "EnvironmentDefined", Time: time.Now().UnixMilli()},
		Links: Links{"CONTEXT": contextID},
		Data:  EnvironmentDefinedData{Name: name, URI: uri},
	}
}

// Client publishes events and looks up upstream events by id. Both
// operations are opaque collaborators per §1; Client only needs to exist so
// the Publisher has something to call.
type Client interface {
	Publish(ctx context.Context, event EnvironmentDefined) error
	Lookup(ctx context.Context, eventID string) (map[string]any, error)
}

// GraphQLClient implements Client against an ETOS GraphQL event server
// (ETOS_GRAPHQL_SERVER, §6.5), grounded on github.com/machinebox/graphql.
// Publish still goes over whatever message bus transport the deployment
// uses; this type only implements the read side (Lookup), since that is the
// half the retrieved slice actually specifies a client library for.
type GraphQLClient struct {
	graphql *graphql.Client
	publish func(ctx context.Context, event EnvironmentDefined) error
}

// NewGraphQLClient builds a GraphQLClient against endpoint, with publish as
// the transport-specific event emission function (message bus, HTTP POST,
// etc. — left to the caller since it is out of scope per §1).
func NewGraphQLClient(endpoint string, publish func(ctx context.Context, event EnvironmentDefined) error) *GraphQLClient {
	return &GraphQLClient{graphql: graphql.NewClient(endpoint), publish: publish}
}

func (c *GraphQLClient) Publish(ctx context.Context, event EnvironmentDefined) error {
	return c.publish(ctx, event)
}

const lookupQuery = `
query ($id: String!) {
  events(id: $id) {
    edges {
      node {
        id
        meta
        data
        links
      }
    }
  }
}`

// Lookup fetches a single event by id through the GraphQL event server.
func (c *GraphQLClient) Lookup(ctx context.Context, eventID string) (map[string]any, error) {
	req := graphql.NewRequest(lookupQuery)
	req.Var("id", eventID)

	var resp struct {
		Events struct {
			Edges []struct {
				Node map[string]any `json:"node"`
			} `json:"edges"`
		} `json:"events"`
	}
	if err := c.graphql.Run(ctx, req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Events.Edges) == 0 {
		return nil, nil
	}
	return resp.Events.Edges[0].Node, nil
}
