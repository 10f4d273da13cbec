// Package railway is a thin client for the Railway GraphQL API. It covers
// the two queries the exporter needs: project metadata with the service list,
// and per-service usage counters for the current billing period.
package railway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Measurement names as they appear in the Railway API.
const (
	MeasurementCPU       = "CPU_USAGE"
	MeasurementMemory    = "MEMORY_USAGE_GB"
	MeasurementDisk      = "DISK_USAGE_GB"
	MeasurementNetworkTx = "NETWORK_TX_GB"
	MeasurementNetworkRx = "NETWORK_RX_GB"
)

const requestTimeout = 30 * time.Second

// Service is one service node of the project.
type Service struct {
	ID   string
	Name string
	Icon string
}

// Project is the project metadata with its services in API order.
type Project struct {
	Name     string
	Services []Service
}

// Usage maps service ID to measurement name to cumulative value.
type Usage map[string]map[string]float64

// Client talks to the Railway GraphQL endpoint.
type Client struct {
	http   *http.Client
	token  string
	apiURL string
}

func NewClient(token, apiURL string) *Client {
	return &Client{
		http:   &http.Client{Timeout: requestTimeout},
		token:  token,
		apiURL: apiURL,
	}
}

type graphQLRequest struct {
	Query string `json:"query"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

// query posts a GraphQL query and decodes the data envelope into out.
func (c *Client) query(ctx context.Context, query string, out any) error {
	body, err := json.Marshal(graphQLRequest{Query: query})
	if err != nil {
		return fmt.Errorf("failed to encode query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected HTTP status %d", resp.StatusCode)
	}

	var envelope graphQLResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("graphql error: %s", envelope.Errors[0].Message)
	}
	if envelope.Data == nil {
		return fmt.Errorf("no data in response")
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("failed to parse response data: %w", err)
	}
	return nil
}

// GetProject fetches project metadata including the service list.
func (c *Client) GetProject(ctx context.Context, projectID string) (*Project, error) {
	query := fmt.Sprintf(
		`{ project(id: %q) { name services { edges { node { id name icon } } } } }`,
		projectID,
	)

	var data struct {
		Project struct {
			Name     string `json:"name"`
			Services struct {
				Edges []struct {
					Node struct {
						ID   string  `json:"id"`
						Name string  `json:"name"`
						Icon *string `json:"icon"`
					} `json:"node"`
				} `json:"edges"`
			} `json:"services"`
		} `json:"project"`
	}
	if err := c.query(ctx, query, &data); err != nil {
		return nil, err
	}

	project := &Project{Name: data.Project.Name}
	for _, edge := range data.Project.Services.Edges {
		icon := ""
		if edge.Node.Icon != nil {
			icon = *edge.Node.Icon
		}
		project.Services = append(project.Services, Service{
			ID:   edge.Node.ID,
			Name: edge.Node.Name,
			Icon: icon,
		})
	}
	return project, nil
}

// GetUsage fetches the current billing period's cumulative usage grouped by
// service.
func (c *Client) GetUsage(ctx context.Context, projectID string) (Usage, error) {
	query := fmt.Sprintf(
		`{ usage(projectId: %q, measurements: [CPU_USAGE, MEMORY_USAGE_GB, DISK_USAGE_GB, NETWORK_TX_GB, NETWORK_RX_GB], groupBy: [SERVICE_ID]) { measurement value tags { serviceId } } }`,
		projectID,
	)

	var data struct {
		Usage []struct {
			Measurement string  `json:"measurement"`
			Value       float64 `json:"value"`
			Tags        struct {
				ServiceID string `json:"serviceId"`
			} `json:"tags"`
		} `json:"usage"`
	}
	if err := c.query(ctx, query, &data); err != nil {
		return nil, err
	}

	usage := make(Usage)
	for _, item := range data.Usage {
		byMeasurement, ok := usage[item.Tags.ServiceID]
		if !ok {
			byMeasurement = make(map[string]float64)
			usage[item.Tags.ServiceID] = byMeasurement
		}
		byMeasurement[item.Measurement] = item.Value
	}
	return usage, nil
}
