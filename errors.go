/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"html"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newLogger(verbose bool) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	zcfg.Encoding = "console"
	zcfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(logDate)
	zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	zcfg.EncoderConfig.ConsoleSeparator = " | "
	zcfg.DisableCaller = true
	zcfg.DisableStacktrace = true
	zcfg.Sampling = nil

	zcfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	if verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	return zcfg.Build()
}

func logf(cfg *Config, format string, args ...any) {
	if !cfg.verbose || cfg.logger == nil {
		return
	}

	cfg.logger.Sugar().Infof(format, args...)
}

func errorf(cfg *Config, format string, args ...any) {
	if cfg.logger == nil {
		return
	}

	cfg.logger.Sugar().Errorf(format, args...)
}

func newPage(title, body string) string {
	var htmlBody strings.Builder

	htmlBody.WriteString(`<!DOCTYPE html><html lang="en"><head>`)
	htmlBody.WriteString(getFavicon())
	htmlBody.WriteString(`<style>`)
	htmlBody.WriteString(`html,body,a{display:block;height:100%;width:100%;text-decoration:none;color:inherit;cursor:auto;}</style>`)
	htmlBody.WriteString(fmt.Sprintf("<title>%s</title></head>", html.EscapeString(title)))
	htmlBody.WriteString(fmt.Sprintf("<body><a href=\"/\">%s</a></body></html>", html.EscapeString(body)))

	return htmlBody.String()
}

func warnf(cfg *Config, format string, args ...any) {
	if cfg.logger == nil {
		return
	}

	cfg.logger.Sugar().Warnf(format, args...)
}
