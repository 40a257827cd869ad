package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"paper-notes-app/config"
	"paper-notes-app/internal/envHelper"
	"paper-notes-app/internal/mirror"
	"paper-notes-app/internal/notes"
	"paper-notes-app/internal/pics"
	"paper-notes-app/internal/server"
	"paper-notes-app/internal/store"
)

func main() {
	// Load environment variables
	envHelper.LoadEnv()
	cfg := config.FromEnv()

	pflag.IntVarP(&cfg.Port, "port", "p", cfg.Port, "HTTP listen port")
	pflag.StringVar(&cfg.RootDir, "root", cfg.RootDir, "application directory served as static files")
	pflag.Parse()

	opts := server.Options{
		StaticDir:      cfg.RootDir,
		Notes:          notes.NewStore(cfg.NotesPath()),
		Pics:           pics.NewDir(cfg.PicsPath()),
		MaxUploadBytes: cfg.MaxUploadBytes,
	}

	// Mirror pictures to S3 when a bucket is configured
	if cfg.AWS.Bucket != "" {
		sess, err := mirror.NewSession(cfg.AWS.Region, cfg.AWS.AccessKey, cfg.AWS.SecretKey)
		if err != nil {
			log.Fatal("Error creating AWS session:", err)
		}
		opts.Mirror = mirror.NewFromSession(sess, cfg.AWS.Bucket, cfg.AWS.Prefix)
		log.Printf("Mirroring core pictures to s3://%s/%s\n", cfg.AWS.Bucket, cfg.AWS.Prefix)
	}

	// Audit log in mysql when a database is configured
	if cfg.DB.Host != "" {
		db, err := sql.Open("mysql", cfg.DB.DSN())
		if err != nil {
			log.Fatal("Error opening database:", err)
		}
		defer db.Close()
		s := store.New(db)
		if err := s.GetDB().Ping(); err != nil {
			log.Fatal("Error pinging database:", err)
		}
		if err := s.EnsureSchema(); err != nil {
			log.Fatal("Error creating logs table:", err)
		}
		log.Println("Database pinged successfully.")
		opts.Audit = s
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           server.New(opts).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Printf("Server running at http://localhost%s\n", srv.Addr)
		log.Printf("Notes directory: %s\n", cfg.NotesPath())
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Println("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal("Server error:", err)
	}
}
