// Command objectmail-sweep is the operator-initiated offline tool spec.md
// §7/§9 describes: it scans the recycle bin for chunks that are still at
// zero references and permanently deletes their mail-store drafts and
// metadata rows, draining chunks the request path only ever parks for
// possible reclaim. Grounded on cmd/guerrillad's command-per-binary
// layout, trimmed to a single cobra.Command (no serve/version split: this
// tool runs once and exits).
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/gomodule/redigo/redis"
	"github.com/spf13/cobra"

	"github.com/mailchannels/objectmail/internal/config"
	"github.com/mailchannels/objectmail/internal/mailstore"
	"github.com/mailchannels/objectmail/internal/metadata"
	"github.com/mailchannels/objectmail/internal/objmaillog"
)

var (
	dryRun  bool
	limit   int
	timeout time.Duration

	rootCmd = &cobra.Command{
		Use:   "objectmail-sweep",
		Short: "permanently delete recycle-bin chunks that are still unreferenced",
		RunE:  runSweep,
	}
)

func init() {
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "list what would be deleted without deleting it")
	rootCmd.Flags().IntVar(&limit, "limit", 0, "stop after sweeping this many chunks (0 = no limit)")
	rootCmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "overall deadline for the sweep")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runSweep(cmd *cobra.Command, args []string) error {
	log, err := objmaillog.Get(objmaillog.OutputStderr)
	if err != nil {
		return fmt.Errorf("failed creating logger: %w", err)
	}

	cfg, err := config.Load("")
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log.SetLevel(cfg.LogLevel)

	db, err := sql.Open("mysql", cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("opening metadata database: %w", err)
	}
	defer db.Close()
	var meta metadata.Store = metadata.NewSQLStore(db, metadata.SQLStoreConfig{})
	if cfg.RedisAddr != "" {
		pool := &redis.Pool{
			MaxIdle:     8,
			IdleTimeout: 240 * time.Second,
			Dial:        func() (redis.Conn, error) { return redis.Dial("tcp", cfg.RedisAddr) },
		}
		meta = metadata.NewCachingStore(meta, pool, 0)
		log.Infof("dedup cache enabled at %s", cfg.RedisAddr)
	}

	mail, err := buildMailStore(cfg)
	if err != nil {
		return fmt.Errorf("configuring mail store: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	bin, err := meta.GetRecycleBin(ctx)
	if err != nil {
		return fmt.Errorf("listing recycle bin: %w", err)
	}
	log.Infof("recycle bin holds %d chunks", len(bin))

	swept := 0
	for _, ref := range bin {
		if limit > 0 && swept >= limit {
			log.Infof("stopping at --limit=%d", limit)
			break
		}
		if dryRun {
			log.WithField("hash", ref.Hash).Info("would sweep")
			swept++
			continue
		}
		deleted, err := sweepOne(ctx, meta, mail, ref)
		if err != nil {
			log.WithError(err).WithField("hash", ref.Hash).Error("sweep failed, skipping")
			continue
		}
		if !deleted {
			log.WithField("hash", ref.Hash).Info("reclaimed since listing, left in place")
			continue
		}
		log.WithField("hash", ref.Hash).Info("swept")
		swept++
	}
	log.Infof("swept %d of %d recycle-bin chunks", swept, len(bin))
	return nil
}

// sweepOne deletes one chunk's mail draft and row, re-checking under the
// transaction that the chunk is still at zero references (a concurrent
// PutObject may have reclaimed it between GetRecycleBin and now). It
// reports false, with no error, when the chunk was reclaimed and left alone.
func sweepOne(ctx context.Context, meta metadata.Store, mail mailstore.Store, ref metadata.ChunkRef) (bool, error) {
	tx, err := meta.Begin(ctx)
	if err != nil {
		return false, err
	}
	chunk, err := tx.LookupChunk(ref.Hash)
	if err != nil {
		tx.Rollback()
		return false, err
	}
	if chunk.RefCount != 0 {
		tx.Rollback()
		return false, nil
	}
	if err := tx.RecycleRemove(ref.Hash); err != nil {
		tx.Rollback()
		return false, err
	}
	if err := tx.DeleteChunkRow(ref.Hash); err != nil {
		tx.Rollback()
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	if cache, ok := meta.(chunkGoneNotifier); ok {
		cache.NoteChunkGone(ref.Hash)
	}
	// Best-effort: the row is already gone, so a failure here just leaves
	// an orphan draft in the mailbox for a human to clean up by hand.
	if err := mail.Delete(ctx, chunk.MailMessageID); err != nil {
		return false, fmt.Errorf("metadata row deleted but draft %s could not be removed: %w", chunk.MailMessageID, err)
	}
	return true, nil
}

// chunkGoneNotifier is implemented by metadata.Store decorators (only
// metadata.CachingStore, today) that need telling when a chunk row is
// deleted outright, so a stale existence hint can't outlive the row it
// describes.
type chunkGoneNotifier interface {
	NoteChunkGone(hash string)
}

func buildMailStore(cfg *config.Config) (mailstore.Store, error) {
	switch cfg.EmailProvider {
	case "gmail":
		return mailstore.NewGmailStore(mailstore.GmailStoreConfig{
			Username:     cfg.EmailUser,
			AccessToken:  cfg.EmailPassword,
			PoolSize:     cfg.EmailPoolSize,
			DraftsFolder: cfg.EmailDraftsFolder,
		}), nil
	case "generic":
		return mailstore.NewGenericIMAPStore(mailstore.GenericIMAPStoreConfig{
			Host:         cfg.EmailHost,
			Port:         cfg.EmailPort,
			Username:     cfg.EmailUser,
			Password:     cfg.EmailPassword,
			PoolSize:     cfg.EmailPoolSize,
			DraftsFolder: cfg.EmailDraftsFolder,
			UseTLS:       true,
		}), nil
	default:
		return nil, fmt.Errorf("unknown EMAIL_PROVIDER %q", cfg.EmailProvider)
	}
}
