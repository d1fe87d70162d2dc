package client

import (
	"context"
	"net/rpc"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/pyropy/qrxfer/core/ingest"
	"github.com/pyropy/qrxfer/core/reconcile"
	"github.com/pyropy/qrxfer/lib/checksum"
	"github.com/pyropy/qrxfer/lib/logger"
	collectorRPC "github.com/pyropy/qrxfer/rpc/collector"
)

var log, _ = logger.New("client")

// DefaultParallelism bounds in-flight SaveChunk calls during a push.
const DefaultParallelism = 8

// Client talks to a collector over net/rpc.
type Client struct {
	RpcClient *rpc.Client
}

func NewClient(collectorAddr string) (*Client, error) {
	rpcClient, err := rpc.DialHTTP("tcp", collectorAddr)
	if err != nil {
		return nil, err
	}

	return &Client{
		RpcClient: rpcClient,
	}, nil
}

func (c *Client) Close() error {
	return c.RpcClient.Close()
}

func (c *Client) SaveChunk(session, content string) (*collectorRPC.SaveChunkReply, error) {
	args := &collectorRPC.SaveChunkArgs{
		Session:  session,
		Content:  content,
		CheckSum: checksum.CalculateCheckSum([]byte(content)),
	}

	var reply collectorRPC.SaveChunkReply
	err := c.RpcClient.Call(collectorRPC.Service+".SaveChunk", args, &reply)
	if err != nil {
		return nil, err
	}

	return &reply, nil
}

type PushResult struct {
	Sent       int
	Duplicates int
	Invalid    int
}

// PushTexts sends texts to the collector with at most parallel calls in
// flight. The first failed call cancels the remaining ones.
func (c *Client) PushTexts(ctx context.Context, session string, texts []ingest.Text, parallel int) (*PushResult, error) {
	if parallel <= 0 {
		parallel = DefaultParallelism
	}

	var sent, duplicates, invalid atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)

	for _, text := range texts {
		text := text
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			reply, err := c.SaveChunk(session, text.Content)
			if err != nil {
				log.Errorw("push", "name", text.Name, "error", err)
				return err
			}

			sent.Add(1)
			if reply.Duplicate {
				duplicates.Add(1)
			}
			if !reply.Valid {
				invalid.Add(1)
			}

			return nil
		})
	}

	err := g.Wait()

	result := &PushResult{
		Sent:       int(sent.Load()),
		Duplicates: int(duplicates.Load()),
		Invalid:    int(invalid.Load()),
	}

	log.Infow("push", "session", session, "sent", result.Sent, "duplicates", result.Duplicates, "invalid", result.Invalid)

	return result, err
}

func (c *Client) Stats(session string) (*collectorRPC.StatsReply, error) {
	var reply collectorRPC.StatsReply
	err := c.RpcClient.Call(collectorRPC.Service+".Stats", &collectorRPC.StatsArgs{Session: session}, &reply)
	if err != nil {
		return nil, err
	}

	return &reply, nil
}

func (c *Client) Report(fileName string) (*reconcile.Report, error) {
	var reply collectorRPC.ReportReply
	err := c.RpcClient.Call(collectorRPC.Service+".Report", &collectorRPC.ReportArgs{FileName: fileName}, &reply)
	if err != nil {
		return nil, err
	}

	return &reply.Report, nil
}

// SessionTexts implements ingest.SessionReader against a remote collector.
func (c *Client) SessionTexts(_ context.Context, session string) ([]ingest.Text, error) {
	var reply collectorRPC.ExportReply
	err := c.RpcClient.Call(collectorRPC.Service+".Export", &collectorRPC.ExportArgs{Session: session}, &reply)
	if err != nil {
		return nil, err
	}

	texts := make([]ingest.Text, 0, len(reply.Chunks))
	for _, chunk := range reply.Chunks {
		texts = append(texts, ingest.Text{Name: chunk.Name, Content: chunk.Content})
	}

	return texts, nil
}
