// Package hive polls a Hive JSON-RPC node for comment operations
package hive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	perr "tipjar/internal/platform/errors"
	"tipjar/internal/platform/logger"
)

const (
	defaultTimeout = 10 * time.Second
	defaultPoll    = 3 * time.Second
)

// Comment is one comment operation observed on chain
type Comment struct {
	Author         string
	Permlink       string
	ParentAuthor   string
	ParentPermlink string
	Body           string
	BlockNum       uint32
	Timestamp      time.Time
}

// EventID is the stable identity of a comment, author + "/" + permlink
func (c Comment) EventID() string { return c.Author + "/" + c.Permlink }

// Cursor persists the last fully processed block number
type Cursor interface {
	LoadCursor(ctx context.Context) (uint32, error)
	SaveCursor(ctx context.Context, block uint32) error
}

// Config configures the feed
type Config struct {
	NodeURL      string
	PollInterval time.Duration
	StartBlock   uint32 // used when the cursor is empty
	Timeout      time.Duration
}

// Feed streams comments block by block with at-least-once delivery.
// The cursor is saved only after every comment in a block was emitted,
// so a crash replays the partial block and the ledger dedupes
type Feed struct {
	cfg    Config
	cursor Cursor
	http   *http.Client
	log    logger.Logger
}

// New constructs a Feed over a node and a cursor store
func New(cfg Config, cursor Cursor) *Feed {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPoll
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Feed{
		cfg:    cfg,
		cursor: cursor,
		http:   &http.Client{Timeout: cfg.Timeout},
		log:    *logger.Named("hive-feed"),
	}
}

// Run polls until ctx is canceled, invoking emit for every comment.
// emit errors abort the current block; the cursor is not advanced past it
func (f *Feed) Run(ctx context.Context, emit func(ctx context.Context, c Comment) error) error {
	cur, err := f.cursor.LoadCursor(ctx)
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeDB, "hive feed load cursor")
	}
	if cur == 0 {
		cur = f.cfg.StartBlock
	}
	f.log.Info().Uint32("from_block", cur+1).Msg("hive feed starting")

	ticker := time.NewTicker(f.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			f.log.Info().Uint32("cursor", cur).Msg("hive feed stopping")
			return ctx.Err()
		case <-ticker.C:
		}

		head, err := f.headBlock(ctx)
		if err != nil {
			f.log.Warn().Err(err).Msg("head block fetch failed")
			continue
		}

		for b := cur + 1; b <= head; b++ {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			comments, err := f.commentsIn(ctx, b)
			if err != nil {
				f.log.Warn().Err(err).Uint32("block", b).Msg("block fetch failed")
				break // retry this block next tick
			}
			aborted := false
			for _, c := range comments {
				if err := emit(ctx, c); err != nil {
					f.log.Warn().Err(err).Str("event_id", c.EventID()).Msg("emit failed, block will replay")
					aborted = true
					break
				}
			}
			if aborted {
				break
			}
			if err := f.cursor.SaveCursor(ctx, b); err != nil {
				f.log.Warn().Err(err).Uint32("block", b).Msg("cursor save failed, block will replay")
				break
			}
			cur = b
		}
	}
}

// rpcReq is the JSON-RPC 2.0 request envelope
type rpcReq struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
	ID      int    `json:"id"`
}

type rpcResp struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string { return fmt.Sprintf("rpc %d: %s", e.Code, e.Message) }

// headBlock returns the current head block number
func (f *Feed) headBlock(ctx context.Context) (uint32, error) {
	var props struct {
		HeadBlockNumber uint32 `json:"head_block_number"`
	}
	if err := f.call(ctx, "condenser_api.get_dynamic_global_properties", []any{}, &props); err != nil {
		return 0, err
	}
	return props.HeadBlockNumber, nil
}

// block is the subset of the condenser block payload we read
type block struct {
	Timestamp    string `json:"timestamp"`
	Transactions []struct {
		Operations []json.RawMessage `json:"operations"`
	} `json:"transactions"`
}

// commentOp is the payload of a "comment" operation
type commentOp struct {
	ParentAuthor   string `json:"parent_author"`
	ParentPermlink string `json:"parent_permlink"`
	Author         string `json:"author"`
	Permlink       string `json:"permlink"`
	Body           string `json:"body"`
}

// commentsIn fetches a block and extracts reply comments.
// Top-level posts (empty parent author) are not tip targets and are dropped
func (f *Feed) commentsIn(ctx context.Context, num uint32) ([]Comment, error) {
	var blk block
	if err := f.call(ctx, "condenser_api.get_block", []any{num}, &blk); err != nil {
		return nil, err
	}

	ts, _ := time.Parse("2006-01-02T15:04:05", blk.Timestamp)

	var out []Comment
	for _, tx := range blk.Transactions {
		for _, raw := range tx.Operations {
			// condenser operations are ["name", {payload}] pairs
			var pair []json.RawMessage
			if err := json.Unmarshal(raw, &pair); err != nil || len(pair) != 2 {
				continue
			}
			var name string
			if err := json.Unmarshal(pair[0], &name); err != nil || name != "comment" {
				continue
			}
			var op commentOp
			if err := json.Unmarshal(pair[1], &op); err != nil {
				continue
			}
			if op.ParentAuthor == "" {
				continue
			}
			out = append(out, Comment{
				Author:         op.Author,
				Permlink:       op.Permlink,
				ParentAuthor:   op.ParentAuthor,
				ParentPermlink: op.ParentPermlink,
				Body:           op.Body,
				BlockNum:       num,
				Timestamp:      ts.UTC(),
			})
		}
	}
	return out, nil
}

// call issues one JSON-RPC request against the node
func (f *Feed) call(ctx context.Context, method string, params any, out any) error {
	buf, err := json.Marshal(rpcReq{JSONRPC: "2.0", Method: method, Params: params, ID: 1})
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnknown, "hive encode %s", method)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.cfg.NodeURL, bytes.NewReader(buf))
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnknown, "hive new request %s", method)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "hive %s", method)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return perr.FromChainStatus(resp.StatusCode, fmt.Sprintf("hive %s", method))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "hive read %s", method)
	}
	var env rpcResp
	if err := json.Unmarshal(body, &env); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "hive decode %s", method)
	}
	if env.Error != nil {
		return perr.Wrap(env.Error, perr.ErrorCodeUnavailable, "hive node error")
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(env.Result, out)
}
