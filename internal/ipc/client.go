package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func call[Req, Resp any](c *Client, method string, req Req) (*Resp, error) {
	var resp Resp
	if err := c.client.Call(ServiceName+"."+method, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Start requests the daemon to start processing.
func (c *Client) Start() (*StartResponse, error) {
	return call[StartRequest, StartResponse](c, "Start", StartRequest{})
}

// Stop requests the daemon to stop processing.
func (c *Client) Stop() (*StopResponse, error) {
	return call[StopRequest, StopResponse](c, "Stop", StopRequest{})
}

// Status retrieves the daemon status.
func (c *Client) Status(checks bool) (*StatusResponse, error) {
	return call[StatusRequest, StatusResponse](c, "Status", StatusRequest{Checks: checks})
}

// Enqueue submits a batch of files.
func (c *Client) Enqueue(req EnqueueRequest) (*EnqueueResponse, error) {
	return call[EnqueueRequest, EnqueueResponse](c, "Enqueue", req)
}

// List returns jobs matching the filters.
func (c *Client) List(req ListRequest) (*ListResponse, error) {
	return call[ListRequest, ListResponse](c, "List", req)
}

// Describe returns one job and its attempts.
func (c *Client) Describe(id int64) (*DescribeResponse, error) {
	return call[DescribeRequest, DescribeResponse](c, "Describe", DescribeRequest{ID: id})
}

// Retry re-queues failed jobs.
func (c *Client) Retry(req RetryRequest) (*RetryResponse, error) {
	return call[RetryRequest, RetryResponse](c, "Retry", req)
}

// Batches lists batch summaries.
func (c *Client) Batches() (*BatchesResponse, error) {
	return call[BatchesRequest, BatchesResponse](c, "Batches", BatchesRequest{})
}

// Cleanup deletes delivered local files now.
func (c *Client) Cleanup(req CleanupRequest) (*CleanupResponse, error) {
	return call[CleanupRequest, CleanupResponse](c, "Cleanup", req)
}

// Purge removes old rows whose files are gone.
func (c *Client) Purge() (*CleanupResponse, error) {
	return call[PurgeRequest, CleanupResponse](c, "Purge", PurgeRequest{})
}

// DatabaseHealth retrieves store diagnostics.
func (c *Client) DatabaseHealth() (*DatabaseHealthResponse, error) {
	return call[DatabaseHealthRequest, DatabaseHealthResponse](c, "DatabaseHealth", DatabaseHealthRequest{})
}
