package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	ds "github.com/ipfs/go-datastore"
	dsq "github.com/ipfs/go-datastore/query"
	dslvl "github.com/ipfs/go-ds-leveldb"

	"github.com/pyropy/qrxfer/lib/utils"
)

const chunksPrefix = "/chunks"

// LevelStore keeps chunk texts in a leveldb datastore under
// /chunks/<session>/<name>.
type LevelStore struct {
	Chunks *dslvl.Datastore
}

func NewLevelStore(dsPath string) (*LevelStore, error) {
	p := fmt.Sprintf("%s/chunks", dsPath)
	store, err := dslvl.NewDatastore(p, nil)
	if err != nil {
		return nil, err
	}

	return &LevelStore{
		Chunks: store,
	}, nil
}

func chunkKey(session, name string) ds.Key {
	return ds.NewKey(chunksPrefix).ChildString(session).ChildString(name)
}

func (l *LevelStore) Put(ctx context.Context, chunk StoredChunk) (bool, error) {
	k := chunkKey(chunk.Session, chunk.Name)

	exists, err := l.Chunks.Has(ctx, k)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	b, err := json.Marshal(chunk)
	if err != nil {
		return false, err
	}

	if err := l.Chunks.Put(ctx, k, b); err != nil {
		return false, err
	}

	return true, nil
}

func (l *LevelStore) Sessions(ctx context.Context) ([]string, error) {
	chunks, err := l.query(ctx, chunksPrefix)
	if err != nil {
		return nil, err
	}

	var sessions []string
	for _, c := range chunks {
		sessions = utils.AppendUnique(sessions, c.Session)
	}

	return sessions, nil
}

func (l *LevelStore) SessionChunks(ctx context.Context, session string) ([]StoredChunk, error) {
	return l.query(ctx, ds.NewKey(chunksPrefix).ChildString(session).String())
}

func (l *LevelStore) Count(ctx context.Context) (int, error) {
	res, err := l.Chunks.Query(ctx, dsq.Query{Prefix: chunksPrefix, KeysOnly: true})
	if err != nil {
		return 0, err
	}
	defer res.Close()

	count := 0
	for {
		r, hasNext := res.NextSync()
		if !hasNext {
			break
		}
		if r.Error != nil {
			return count, r.Error
		}
		count++
	}

	return count, nil
}

func (l *LevelStore) Clear(ctx context.Context) error {
	res, err := l.Chunks.Query(ctx, dsq.Query{Prefix: chunksPrefix, KeysOnly: true})
	if err != nil {
		return err
	}

	var keys []ds.Key
	for {
		r, hasNext := res.NextSync()
		if !hasNext {
			break
		}
		if r.Error != nil {
			res.Close()
			return r.Error
		}
		keys = append(keys, ds.NewKey(r.Key))
	}
	res.Close()

	for _, k := range keys {
		if err := l.Chunks.Delete(ctx, k); err != nil {
			return err
		}
	}

	return nil
}

func (l *LevelStore) Close() error {
	return l.Chunks.Close()
}

func (l *LevelStore) query(ctx context.Context, prefix string) ([]StoredChunk, error) {
	chunks := make([]StoredChunk, 0)

	res, err := l.Chunks.Query(ctx, dsq.Query{Prefix: prefix})
	if err != nil {
		return chunks, err
	}
	defer res.Close()

	for {
		r, hasNext := res.NextSync()
		if !hasNext {
			break
		}
		if r.Error != nil {
			return chunks, r.Error
		}
		if !strings.HasPrefix(r.Key, prefix+"/") {
			continue
		}

		var chunk StoredChunk
		if err := json.Unmarshal(r.Value, &chunk); err != nil {
			return chunks, err
		}
		chunks = append(chunks, chunk)
	}

	sortChunks(chunks)

	return chunks, nil
}
