package main

import (
	"context"

	"github.com/hazyhaar/dmitli/domwatch"
	"github.com/hazyhaar/dmitli/emitter"
)

// pageHost answers the emitters' questions by evaluating on the live page.
type pageHost struct {
	page         *domwatch.Page
	gameOverExpr string
}

func (h pageHost) IsGameOver(ctx context.Context) (bool, error) {
	return h.page.EvalBool(ctx, h.gameOverExpr)
}

func (h pageHost) Text(ctx context.Context, selector string) (string, error) {
	return h.page.InnerText(ctx, selector)
}

var _ emitter.Host = pageHost{}
