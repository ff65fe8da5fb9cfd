/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nabbar/s3gw/cleanup"
	s3cfg "github.com/nabbar/s3gw/config"
	"github.com/nabbar/s3gw/dispatcher"
	"github.com/nabbar/s3gw/logger"
	"github.com/nabbar/s3gw/metrics"
	"github.com/nabbar/s3gw/model"
	"github.com/nabbar/s3gw/multipart"
	"github.com/nabbar/s3gw/signer"
	"github.com/nabbar/s3gw/storage"
	"github.com/nabbar/s3gw/storage/filesystem"
	"github.com/nabbar/s3gw/storage/memory"
)

func newServeCommand() *cobra.Command {
	var configPath string
	var verbosity int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "run the S3 gateway HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, verbosity)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the gateway configuration file")
	cmd.Flags().CountVarP(&verbosity, "verbose", "v", "enable verbose logging (multi allowed: v, vv, vvv)")

	return cmd
}

func runServe(ctx context.Context, configPath string, verbosity int) error {
	log := logger.New()
	log.SetLevel(verbosityToLevel(verbosity))
	logger.SetDefault(log)

	cfg, err := s3cfg.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	backend, err := buildBackend(cfg)
	if err != nil {
		return fmt.Errorf("building storage backend: %w", err)
	}

	validator := signer.New(signer.NewStaticCredentialStore(buildUsers(cfg)))

	rec := metrics.New()

	srv, err := dispatcher.New(dispatcher.Options{
		Backend:      backend,
		Validator:    validator,
		Logger:       log,
		AuthDisabled: !cfg.Authentication.Enabled,
	})
	if err != nil {
		return fmt.Errorf("building dispatcher: %w", err)
	}
	srv.Engine().Use(rec.Middleware())
	srv.Engine().GET("/metrics", rec.Handler())

	reloads, err := s3cfg.Watch(configPath, func(werr error) {
		log.WithFields(logger.Fields{"error": werr.Error()}).Warn("config reload failed")
	})
	if err != nil {
		log.WithFields(logger.Fields{"error": err.Error()}).Warn("config hot-reload disabled")
	} else {
		go watchUserReloads(ctx, reloads, validator, log)
	}

	sweepCtx, cancelSweep := context.WithCancel(ctx)
	defer cancelSweep()
	sweeper := cleanup.New(backend, multipart.New(backend), cleanup.Config{
		Interval:                time.Duration(cfg.MetadataCleanup.CleanupIntervalMinutes) * time.Minute,
		BatchSize:               cfg.MetadataCleanup.BatchSize,
		MultipartCleanupEnabled: cfg.MultipartUploadCleanup.Enabled,
	}, log)
	go func() {
		if err := sweeper.Run(sweepCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.WithFields(logger.Fields{"error": err.Error()}).Warn("cleanup sweeper stopped")
		}
	}()

	httpSrv := &http.Server{
		Addr:    cfg.Listen,
		Handler: srv.Engine(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(logger.Fields{"listen": cfg.Listen}).Info("s3gwd listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case sig := <-sigCh:
		log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutting down")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

func verbosityToLevel(v int) logger.Level {
	switch {
	case v >= 2:
		return logger.DebugLevel
	case v == 1:
		return logger.InfoLevel
	default:
		return logger.WarnLevel
	}
}

func buildBackend(cfg *s3cfg.Config) (storage.Backend, error) {
	switch cfg.StorageType {
	case s3cfg.Filesystem:
		return filesystem.New(cfg.FilesystemStorage.DataDirectory)
	default:
		return memory.New(), nil
	}
}

func buildUsers(cfg *s3cfg.Config) []model.S3User {
	users := make([]model.S3User, 0, len(cfg.Authentication.Users))
	for _, u := range cfg.Authentication.Users {
		perms := make([]model.BucketPermission, 0, len(u.BucketPermissions))
		for _, bp := range u.BucketPermissions {
			mp := make([]model.Permission, 0, len(bp.Permissions))
			for _, p := range bp.Permissions {
				mp = append(mp, model.Permission(p))
			}
			perms = append(perms, model.BucketPermission{BucketName: bp.BucketName, Permissions: mp})
		}
		users = append(users, model.S3User{
			AccessKeyId:       u.AccessKeyId,
			SecretAccessKey:   u.SecretAccessKey,
			Name:              u.Name,
			BucketPermissions: perms,
		})
	}
	return users
}

func watchUserReloads(ctx context.Context, reloads <-chan *s3cfg.Config, validator signer.Validator, log logger.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-reloads:
			if !ok {
				return
			}
			store := signer.NewStaticCredentialStore(buildUsers(cfg))
			validator.SetCredentialStore(store)
			log.Info("reloaded Authentication.Users from config")
		}
	}
}
