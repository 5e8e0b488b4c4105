package rpcnode

import (
	"fmt"
	"io"
	"strconv"

	"github.com/anacostia-labs/anacostia/internal/artifact"
	"github.com/go-resty/resty/v2"
)

// RemoteMetadataClient calls a remote metadata-store node's RPC surface
// (spec §4.9/§6) over HTTP. It is the "RPC client from internal/rpcnode"
// DESIGN.md promises resourcenode.MetadataClient: a resource node running
// in a leaf process has no local metadata-store node to call into
// directly, since spec §3 puts the sole metadata-store at the root of
// every local DAG, so it reaches the root's one over the wire instead.
// BaseURL is the metadata node's own mounted prefix, e.g.
// "http://root-host:8080/metadata".
type RemoteMetadataClient struct {
	Client  *resty.Client
	BaseURL string
}

// NewRemoteMetadataClient builds a client against the metadata node
// mounted at baseURL.
func NewRemoteMetadataClient(baseURL string) *RemoteMetadataClient {
	return &RemoteMetadataClient{Client: resty.New(), BaseURL: baseURL}
}

// CreateEntry satisfies resourcenode.MetadataClient by calling
// GET /create_entry on the remote metadata node.
func (c *RemoteMetadataClient) CreateEntry(resource, location string, state artifact.State, runID *int) (artifact.Entry, error) {
	req := c.Client.R().
		SetQueryParam("resource_node_name", resource).
		SetQueryParam("filepath", location).
		SetQueryParam("state", string(state))
	if runID != nil {
		req.SetQueryParam("run_id", strconv.Itoa(*runID))
	}
	var entry artifact.Entry
	resp, err := req.SetResult(&entry).Get(c.BaseURL + "/create_entry")
	if err != nil {
		return artifact.Entry{}, err
	}
	if resp.IsError() {
		return artifact.Entry{}, fmt.Errorf("rpcnode: create_entry returned %d", resp.StatusCode())
	}
	return entry, nil
}

// GetRunID calls GET /get_run_id.
func (c *RemoteMetadataClient) GetRunID() (int, error) {
	var out struct {
		RunID int `json:"run_id"`
	}
	resp, err := c.Client.R().SetResult(&out).Get(c.BaseURL + "/get_run_id")
	if err != nil {
		return 0, err
	}
	if resp.IsError() {
		return 0, fmt.Errorf("rpcnode: get_run_id returned %d", resp.StatusCode())
	}
	return out.RunID, nil
}

// GetNodeID calls GET /get_node_id?node_name=.
func (c *RemoteMetadataClient) GetNodeID(nodeName string) (string, error) {
	var out struct {
		NodeID string `json:"node_id"`
	}
	resp, err := c.Client.R().
		SetQueryParam("node_name", nodeName).
		SetResult(&out).
		Get(c.BaseURL + "/get_node_id")
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", fmt.Errorf("rpcnode: get_node_id returned %d", resp.StatusCode())
	}
	return out.NodeID, nil
}

// MergeArtifactsTable calls POST /merge_artifacts_table?resource_node_name=
// with entries as the JSON body (spec §6).
func (c *RemoteMetadataClient) MergeArtifactsTable(resource string, entries []artifact.Entry) error {
	resp, err := c.Client.R().
		SetQueryParam("resource_node_name", resource).
		SetBody(entries).
		Post(c.BaseURL + "/merge_artifacts_table")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("rpcnode: merge_artifacts_table returned %d", resp.StatusCode())
	}
	return nil
}

// EntryExists calls GET /entry_exists.
func (c *RemoteMetadataClient) EntryExists(resource, location string) (bool, error) {
	var out struct {
		Exists bool `json:"exists"`
	}
	resp, err := c.Client.R().
		SetQueryParam("resource_node_name", resource).
		SetQueryParam("location", location).
		SetResult(&out).
		Get(c.BaseURL + "/entry_exists")
	if err != nil {
		return false, err
	}
	if resp.IsError() {
		return false, fmt.Errorf("rpcnode: entry_exists returned %d", resp.StatusCode())
	}
	return out.Exists, nil
}

// GetEntries calls GET /get_entries.
func (c *RemoteMetadataClient) GetEntries(resource string, state artifact.State) ([]artifact.Entry, error) {
	var entries []artifact.Entry
	resp, err := c.Client.R().
		SetQueryParam("resource_node_name", resource).
		SetQueryParam("state", string(state)).
		SetResult(&entries).
		Get(c.BaseURL + "/get_entries")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("rpcnode: get_entries returned %d", resp.StatusCode())
	}
	return entries, nil
}

// GetNumEntries calls GET /get_num_entries.
func (c *RemoteMetadataClient) GetNumEntries(resource string, state artifact.State) (int, error) {
	var out struct {
		Count int `json:"count"`
	}
	resp, err := c.Client.R().
		SetQueryParam("resource_node_name", resource).
		SetQueryParam("state", string(state)).
		SetResult(&out).
		Get(c.BaseURL + "/get_num_entries")
	if err != nil {
		return 0, err
	}
	if resp.IsError() {
		return 0, fmt.Errorf("rpcnode: get_num_entries returned %d", resp.StatusCode())
	}
	return out.Count, nil
}

// kvOp posts kv to one of log_metrics/log_params/set_tags for nodeName at
// runID.
func (c *RemoteMetadataClient) kvOp(endpoint, nodeName string, runID int, kv map[string]string) error {
	resp, err := c.Client.R().
		SetQueryParam("node_name", nodeName).
		SetQueryParam("run_id", strconv.Itoa(runID)).
		SetBody(kv).
		Post(c.BaseURL + "/" + endpoint)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("rpcnode: %s returned %d", endpoint, resp.StatusCode())
	}
	return nil
}

func (c *RemoteMetadataClient) LogMetrics(nodeName string, runID int, kv map[string]string) error {
	return c.kvOp("log_metrics", nodeName, runID, kv)
}

func (c *RemoteMetadataClient) LogParams(nodeName string, runID int, kv map[string]string) error {
	return c.kvOp("log_params", nodeName, runID, kv)
}

func (c *RemoteMetadataClient) SetTags(nodeName string, runID int, kv map[string]string) error {
	return c.kvOp("set_tags", nodeName, runID, kv)
}

// kvGet fetches one of get_metrics/get_params/get_tags for nodeName at
// runID.
func (c *RemoteMetadataClient) kvGet(endpoint, nodeName string, runID int) (map[string]string, error) {
	var kv map[string]string
	resp, err := c.Client.R().
		SetQueryParam("node_name", nodeName).
		SetQueryParam("run_id", strconv.Itoa(runID)).
		SetResult(&kv).
		Get(c.BaseURL + "/" + endpoint)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("rpcnode: %s returned %d", endpoint, resp.StatusCode())
	}
	return kv, nil
}

func (c *RemoteMetadataClient) GetMetrics(nodeName string, runID int) (map[string]string, error) {
	return c.kvGet("get_metrics", nodeName, runID)
}

func (c *RemoteMetadataClient) GetParams(nodeName string, runID int) (map[string]string, error) {
	return c.kvGet("get_params", nodeName, runID)
}

func (c *RemoteMetadataClient) GetTags(nodeName string, runID int) (map[string]string, error) {
	return c.kvGet("get_tags", nodeName, runID)
}

// LogTrigger calls POST /log_trigger?node_name= with {"message": message}.
func (c *RemoteMetadataClient) LogTrigger(nodeName, message string) error {
	resp, err := c.Client.R().
		SetQueryParam("node_name", nodeName).
		SetBody(map[string]string{"message": message}).
		Post(c.BaseURL + "/log_trigger")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("rpcnode: log_trigger returned %d", resp.StatusCode())
	}
	return nil
}

// RemoteArtifactClient streams artifact bytes to/from a remote resource
// node's RPC callee (spec §4.9 "Transfer of artifacts is streamed"). Used
// by a root (or another leaf) that needs a leaf's resource artifacts
// without local filesystem access. BaseURL is the resource node's own
// mounted prefix, e.g. "http://leaf-host:8081/pipeline-id/dataset".
type RemoteArtifactClient struct {
	Client  *resty.Client
	BaseURL string
}

// NewRemoteArtifactClient builds a client against the resource node
// mounted at baseURL.
func NewRemoteArtifactClient(baseURL string) *RemoteArtifactClient {
	return &RemoteArtifactClient{Client: resty.New(), BaseURL: baseURL}
}

// GetNumArtifacts calls GET /get_num_artifacts?state=.
func (c *RemoteArtifactClient) GetNumArtifacts(state artifact.State) (int, error) {
	var out struct {
		Count int `json:"count"`
	}
	resp, err := c.Client.R().
		SetQueryParam("state", string(state)).
		SetResult(&out).
		Get(c.BaseURL + "/get_num_artifacts")
	if err != nil {
		return 0, err
	}
	if resp.IsError() {
		return 0, fmt.Errorf("rpcnode: get_num_artifacts returned %d", resp.StatusCode())
	}
	return out.Count, nil
}

// ListArtifacts calls GET /list_artifacts?state=.
func (c *RemoteArtifactClient) ListArtifacts(state artifact.State) ([]string, error) {
	var locations []string
	resp, err := c.Client.R().
		SetQueryParam("state", string(state)).
		SetResult(&locations).
		Get(c.BaseURL + "/list_artifacts")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("rpcnode: list_artifacts returned %d", resp.StatusCode())
	}
	return locations, nil
}

// GetArtifact streams GET /get_artifact/{path} into an io.ReadCloser the
// caller must close.
func (c *RemoteArtifactClient) GetArtifact(path string) (io.ReadCloser, error) {
	resp, err := c.Client.R().
		SetDoNotParseResponse(true).
		Get(c.BaseURL + "/get_artifact/" + path)
	if err != nil {
		return nil, err
	}
	if resp.RawResponse.StatusCode >= 400 {
		defer resp.RawBody().Close()
		return nil, fmt.Errorf("rpcnode: get_artifact returned %d", resp.RawResponse.StatusCode)
	}
	return resp.RawBody(), nil
}

// UploadStream streams data to POST /upload_stream with filename carried in
// the X-Filename header (spec §4.9/§6). Rejects on a 409 Conflict the same
// way the local fsguard.ErrExists path does.
func (c *RemoteArtifactClient) UploadStream(filename string, data io.Reader) error {
	resp, err := c.Client.R().
		SetHeader("X-Filename", filename).
		SetBody(data).
		Post(c.BaseURL + "/upload_stream")
	if err != nil {
		return err
	}
	if resp.StatusCode() == 409 {
		return fmt.Errorf("rpcnode: upload_stream: artifact %q already exists", filename)
	}
	if resp.IsError() {
		return fmt.Errorf("rpcnode: upload_stream returned %d", resp.StatusCode())
	}
	return nil
}
