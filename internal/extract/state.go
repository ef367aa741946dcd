package extract

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dop251/goja"
	"github.com/rs/zerolog/log"
)

const scriptBudget = 500 * time.Millisecond

// inlineProduct is the product config the shop assigns to window.asos.pdp.config.product
type inlineProduct struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	BrandName string `json:"brandName"`
	Variants  []struct {
		Size      string `json:"size"`
		Colour    string `json:"colour"`
		IsInStock bool   `json:"isInStock"`
	} `json:"variants"`
	Images []struct {
		URL string `json:"url"`
	} `json:"images"`
}

const readProductJS = `(function () {
  try {
    var p = window.asos.pdp.config.product;
    return p ? JSON.stringify(p) : null;
  } catch (e) {
    return null;
  }
})()`

// inlineState runs the page's inline scripts in a sandbox and returns the
// product config they assign, or nil
func inlineState(doc *goquery.Document, pageURL string) *inlineProduct {
	var scripts []string
	doc.Find("script").Each(func(i int, sel *goquery.Selection) {
		if _, external := sel.Attr("src"); external {
			return
		}
		if typ, ok := sel.Attr("type"); ok && typ != "" && typ != "text/javascript" && typ != "application/javascript" {
			return
		}
		if src := sel.Text(); strings.Contains(src, "window.asos") {
			scripts = append(scripts, src)
		}
	})
	if len(scripts) == 0 {
		return nil
	}

	vm := goja.New()
	timer := time.AfterFunc(scriptBudget, func() { vm.Interrupt("script budget exceeded") })
	defer timer.Stop()

	noop := func(goja.FunctionCall) goja.Value { return goja.Undefined() }
	_ = vm.Set("window", vm.GlobalObject())
	_ = vm.Set("self", vm.GlobalObject())
	_ = vm.Set("location", map[string]interface{}{"href": pageURL})
	_ = vm.Set("document", map[string]interface{}{
		"location":      map[string]interface{}{"href": pageURL},
		"querySelector": noop,
	})
	_ = vm.Set("console", map[string]interface{}{"log": noop, "warn": noop, "error": noop})

	for _, src := range scripts {
		// most page scripts touch APIs the sandbox lacks; only assignments matter
		if _, err := vm.RunString(src); err != nil {
			if _, interrupted := err.(*goja.InterruptedError); interrupted {
				log.Debug().Str("url", pageURL).Msg("Inline script evaluation interrupted")
				return nil
			}
		}
	}

	v, err := vm.RunString(readProductJS)
	if err != nil || goja.IsNull(v) || goja.IsUndefined(v) {
		return nil
	}

	var p inlineProduct
	if err := json.Unmarshal([]byte(v.String()), &p); err != nil {
		log.Debug().Err(err).Str("url", pageURL).Msg("Inline product config is not valid JSON")
		return nil
	}
	return &p
}
