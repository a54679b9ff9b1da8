package wps

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"github.com/jobrunner/catena/internal/domain"
	"github.com/jobrunner/catena/internal/fetch"
	"github.com/jobrunner/catena/internal/ows"
)

// JobState tracks an asynchronous execution.
type JobState string

// Job states.
const (
	StateCreated   JobState = "created"
	StateRunning   JobState = "running"
	StateSucceeded JobState = "succeeded"
	StateFailed    JobState = "failed"
)

// executeTemplate is the POST body of an Execute request. Inputs are
// passed as literal data; the response is requested as a stored,
// status-reporting document so the job can be polled.
const executeTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<wps:Execute version="1.0.0" service="WPS"
    xmlns:wps="http://www.opengis.net/wps/1.0.0"
    xmlns:ows="http://www.opengis.net/ows/1.1">
  <ows:Identifier>{{.Identifier}}</ows:Identifier>
  <wps:DataInputs>
{{- range .Inputs}}
    <wps:Input>
      <ows:Identifier>{{.Key}}</ows:Identifier>
      <wps:Data>
        <wps:LiteralData>{{.Value}}</wps:LiteralData>
      </wps:Data>
    </wps:Input>
{{- end}}
  </wps:DataInputs>
  <wps:ResponseForm>
    <wps:ResponseDocument storeExecuteResponse="{{.Store}}" status="{{.Status}}"/>
  </wps:ResponseForm>
</wps:Execute>`

// ExecuteOptions configures one process execution.
type ExecuteOptions struct {
	URL        string
	Identifier string

	// Inputs maps input identifiers to their literal values.
	Inputs map[string]string

	// POST forces the XML request body; default is GET with the inputs
	// flattened into the DataInputs query parameter.
	POST bool

	// Store and Status request asynchronous execution when the process
	// supports it.
	Store  bool
	Status bool
}

// sortedInputs flattens the input map deterministically.
func sortedInputs(inputs map[string]string) []struct{ Key, Value string } {
	keys := make([]string, 0, len(inputs))
	for k := range inputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]struct{ Key, Value string }, 0, len(keys))
	for _, k := range keys {
		out = append(out, struct{ Key, Value string }{k, inputs[k]})
	}
	return out
}

// ExecuteURL builds the GET form of an Execute request, with the
// inputs flattened to "key=value;key=value".
func ExecuteURL(opts ExecuteOptions) (string, error) {
	if opts.URL == "" {
		return "", &domain.ConfigError{Field: "url", Message: "a WPS execution needs a url"}
	}
	if opts.Identifier == "" {
		return "", &domain.ConfigError{Field: "processIdentifier", Message: "a WPS execution needs a process identifier"}
	}

	var pairs []string
	for _, in := range sortedInputs(opts.Inputs) {
		pairs = append(pairs, in.Key+"="+in.Value)
	}
	params := map[string]string{
		"service":    "WPS",
		"version":    "1.0.0",
		"request":    "Execute",
		"Identifier": opts.Identifier,
		"DataInputs": strings.Join(pairs, ";"),
	}
	if opts.Store {
		params["storeExecuteResponse"] = "true"
	}
	if opts.Status {
		params["status"] = "true"
	}
	return ows.BuildURL(opts.URL, params)
}

// ExecuteBody renders the POST form of an Execute request.
func ExecuteBody(opts ExecuteOptions) ([]byte, error) {
	if opts.Identifier == "" {
		return nil, &domain.ConfigError{Field: "processIdentifier", Message: "a WPS execution needs a process identifier"}
	}
	tmpl := template.Must(template.New("execute").Parse(executeTemplate))

	var buf bytes.Buffer
	err := tmpl.Execute(&buf, map[string]any{
		"Identifier": opts.Identifier,
		"Inputs":     sortedInputs(opts.Inputs),
		"Store":      opts.Store,
		"Status":     opts.Status,
	})
	if err != nil {
		return nil, &domain.ConfigError{Field: "inputs", Message: err.Error()}
	}
	return buf.Bytes(), nil
}

// ComplexOutput is the inline complex payload of one output.
type ComplexOutput struct {
	MimeType string `xml:"mimeType,attr"`
	Schema   string `xml:"schema,attr"`
	Content  string `xml:",chardata"`
}

// OutputReference is a by-reference output location.
type OutputReference struct {
	Href string `xml:"href,attr"`
}

// Output is one process output from an ExecuteResponse.
type Output struct {
	Identifier string          `xml:"Identifier"`
	Title      string          `xml:"Title"`
	Literal    string          `xml:"Data>LiteralData"`
	Complex    ComplexOutput   `xml:"Data>ComplexData"`
	Reference  OutputReference `xml:"Reference"`
}

type statusXML struct {
	ProcessAccepted  *struct{}         `xml:"ProcessAccepted"`
	ProcessStarted   *processStatusXML `xml:"ProcessStarted"`
	ProcessSucceeded *struct{}         `xml:"ProcessSucceeded"`
	ProcessFailed    *processFailedXML `xml:"ProcessFailed"`
}

type processStatusXML struct {
	Message string `xml:",chardata"`
}

type processFailedXML struct {
	ExceptionText string `xml:"ExceptionReport>Exception>ExceptionText"`
}

// ExecuteResponse is a parsed Execute or status-poll response.
type ExecuteResponse struct {
	XMLName        xml.Name
	StatusLocation string    `xml:"statusLocation,attr"`
	Status         statusXML `xml:"Status"`
	Outputs        []Output  `xml:"ProcessOutputs>Output"`
}

// ParseExecuteResponse parses an Execute or status-poll response body.
func ParseExecuteResponse(body []byte) (*ExecuteResponse, error) {
	if err := ows.CheckForException(body); err != nil {
		return nil, err
	}
	var resp ExecuteResponse
	if err := xml.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	if resp.XMLName.Local != "ExecuteResponse" {
		return nil, domain.ErrMissingCapability
	}
	return &resp, nil
}

// Job is one process execution and its polling state.
type Job struct {
	State          JobState
	StatusLocation string
	Outputs        []Output

	client *fetch.Client
}

// Execute submits the process. The returned job is terminal when the
// server answered synchronously, otherwise it is running and must be
// polled through CheckStatus. Poll cadence is the caller's decision.
func Execute(ctx context.Context, client *fetch.Client, opts ExecuteOptions) (*Job, error) {
	var body []byte
	var err error
	if opts.POST {
		var payload []byte
		payload, err = ExecuteBody(opts)
		if err != nil {
			return nil, err
		}
		if opts.URL == "" {
			return nil, &domain.ConfigError{Field: "url", Message: "a WPS execution needs a url"}
		}
		body, err = client.Post(ctx, opts.URL, "application/xml", payload, Protocol)
	} else {
		var executeURL string
		executeURL, err = ExecuteURL(opts)
		if err != nil {
			return nil, err
		}
		// An execution is a command, not a cacheable read.
		client.Invalidate(executeURL)
		body, err = client.Get(ctx, executeURL, 0, Protocol)
	}
	if err != nil {
		return nil, err
	}

	job := &Job{State: StateCreated, client: client}
	if err := job.apply(opts.URL, body); err != nil {
		return nil, err
	}
	return job, nil
}

// CheckStatus polls the job's status document once and advances the
// job state. Terminal states are returned as-is without refetching.
func (j *Job) CheckStatus(ctx context.Context) (JobState, error) {
	if j.State == StateSucceeded || j.State == StateFailed {
		return j.State, nil
	}
	if j.StatusLocation == "" {
		return j.State, &domain.ServiceError{
			Title:   "Process status unavailable",
			Message: "The server reported a running process but no status location to poll.",
			Err:     domain.ErrBadResponse,
		}
	}

	// Polling must observe state changes, so the memoized copy of the
	// status document is dropped first.
	j.client.Invalidate(j.StatusLocation)
	body, err := j.client.Get(ctx, j.StatusLocation, 0, Protocol)
	if err != nil {
		return j.State, err
	}
	if err := j.apply(j.StatusLocation, body); err != nil {
		return j.State, err
	}
	return j.State, nil
}

// apply folds one response into the job state.
func (j *Job) apply(url string, body []byte) error {
	resp, err := ParseExecuteResponse(body)
	if err != nil {
		return domain.FormatError(url, err)
	}
	if resp.StatusLocation != "" {
		j.StatusLocation = resp.StatusLocation
	}

	switch {
	case resp.Status.ProcessFailed != nil:
		j.State = StateFailed
		text := resp.Status.ProcessFailed.ExceptionText
		if text == "" {
			text = "the server reported a failure without detail"
		}
		return &domain.ServiceError{
			Title:   "Process failed",
			Message: fmt.Sprintf("The server reported: %s", text),
			Err:     domain.ErrBadResponse,
		}
	case resp.Status.ProcessSucceeded != nil:
		j.State = StateSucceeded
		j.Outputs = resp.Outputs
	default:
		j.State = StateRunning
	}
	return nil
}
