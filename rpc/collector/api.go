package collector

import (
	"context"
	"errors"
	"net/rpc"

	core "github.com/pyropy/qrxfer/core/collector"
	"github.com/pyropy/qrxfer/core/reconcile"
	"github.com/pyropy/qrxfer/lib/checksum"
	"github.com/pyropy/qrxfer/lib/logger"
)

var log, _ = logger.New("collector-rpc")

var ErrChecksumMismatch = errors.New("checksum mismatch")

// API exposes a collector over net/rpc.
type API struct {
	collector *core.Collector
}

func NewAPI(c *core.Collector) *API {
	return &API{
		collector: c,
	}
}

// NewServer returns an rpc server with the API registered as Service.
func NewServer(c *core.Collector) (*rpc.Server, error) {
	server := rpc.NewServer()
	if err := server.RegisterName(Service, NewAPI(c)); err != nil {
		return nil, err
	}

	return server, nil
}

// SaveChunk ...
func (a *API) SaveChunk(args *SaveChunkArgs, reply *SaveChunkReply) error {
	log.Infow("rpc", "event", "CollectorAPI.SaveChunk", "session", args.Session, "checksum", args.CheckSum)

	if checksum.CalculateCheckSum([]byte(args.Content)) != args.CheckSum {
		return ErrChecksumMismatch
	}

	result, err := a.collector.SaveChunk(context.Background(), core.SaveRequest{
		Session:    args.Session,
		FileName:   args.FileName,
		ChunkIndex: args.ChunkIndex,
		Content:    args.Content,
	})
	if err != nil {
		return err
	}

	reply.Session = result.Session
	reply.Name = result.Name
	reply.Valid = result.Valid
	reply.Duplicate = result.Duplicate

	return nil
}

// Stats ...
func (a *API) Stats(args *StatsArgs, reply *StatsReply) error {
	log.Infow("rpc", "event", "CollectorAPI.Stats", "session", args.Session)

	stats, err := a.collector.Stats(context.Background())
	if err != nil {
		return err
	}

	reply.ChunksCount = stats.ChunksCount
	reply.SaveDir = stats.SaveDir
	reply.Session = stats.Session
	reply.Sessions = stats.Sessions
	if args.Session != "" {
		reply.Sessions = map[string]int{args.Session: stats.Sessions[args.Session]}
	}
	reply.Files = stats.Files

	return nil
}

// Report ...
func (a *API) Report(args *ReportArgs, reply *ReportReply) error {
	log.Infow("rpc", "event", "CollectorAPI.Report", "file", args.FileName)

	report := a.collector.Report()
	if args.FileName != "" {
		report = filterReport(report, args.FileName)
	}

	reply.Report = *report

	return nil
}

// Export ...
func (a *API) Export(args *ExportArgs, reply *ExportReply) error {
	log.Infow("rpc", "event", "CollectorAPI.Export", "session", args.Session)

	chunks, err := a.collector.Export(context.Background(), args.Session)
	if err != nil {
		return err
	}

	reply.Session = args.Session
	for _, c := range chunks {
		reply.Chunks = append(reply.Chunks, Chunk{Name: c.Name, Content: c.Content})
	}

	return nil
}

func filterReport(report *reconcile.Report, fileName string) *reconcile.Report {
	filtered := *report
	filtered.Files = nil
	if f, ok := report.File(fileName); ok {
		filtered.Files = []reconcile.FileReport{*f}
	}

	return &filtered
}
