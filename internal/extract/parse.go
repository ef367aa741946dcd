package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/law-makers/shopscrape/internal/engine"
	urlutil "github.com/law-makers/shopscrape/internal/utils/url"
	"github.com/law-makers/shopscrape/pkg/models"
)

const (
	ScrapeTypeSearch   = "ASOS Search"
	ScrapeTypeCategory = "ASOS Category"

	imageSuffix  = "?$n_960w$&wid=960&fit=constrain"
	imageHostTag = "asos-media"
)

var (
	currencyPattern = regexp.MustCompile(`[£$€]`)
	nonNumeric      = regexp.MustCompile(`[^\d.]`)
)

var careSelectors = []string{
	"#productDescriptionCareInfo .F_yfF",
	"[data-testid='productDescriptionCareInfo'] .F_yfF",
	".accordion-item-module_contentWrapper__qd4TE .F_yfF",
	"[aria-controls='productDescriptionCareInfo'] ~ div .F_yfF",
	"[aria-label='Look After Me'] ~ div .F_yfF",
}

// Parse extracts a product from a rendered product page. item supplies the
// category the page was discovered under. A page without a product name
// yields engine.ErrEmptyRecord.
func Parse(page, pageURL string, item models.WorkItem) (*models.Product, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("failed to parse product page: %w", err)
	}

	state := inlineState(doc, pageURL)
	text := func(sel string) string { return cleanText(doc.Find(sel).First().Text()) }

	p := &models.Product{
		ProductURL: pageURL,
		ProductID:  urlutil.ProductID(pageURL),
	}

	p.Name = text("h1[data-testid='product-title']")
	if p.Name == "" && state != nil {
		p.Name = cleanText(state.Name)
	}
	if p.Name == "" {
		if title := text("title"); title != "" {
			p.Name = strings.TrimSpace(strings.Split(title, "|")[0])
		}
	}
	if p.Name == "" {
		return nil, engine.ErrEmptyRecord
	}

	if raw := text("[data-testid='current-price']"); raw != "" {
		p.Currency = currencyPattern.FindString(raw)
		if v, err := strconv.ParseFloat(nonNumeric.ReplaceAllString(raw, ""), 64); err == nil {
			p.Price = &v
		}
	}

	p.StockStatus = text("[data-testid='stock-availability']")
	if p.StockStatus == "" {
		p.StockStatus = "Available"
	}
	status := strings.ToLower(p.StockStatus)
	p.Availability = !strings.Contains(status, "out of stock") && !strings.Contains(status, "unavailable")

	p.Colors = colors(doc)
	p.Description = description(doc, pageURL)
	p.Brand = brand(doc, state, pageURL)
	p.Category = cleanText(doc.Find("#productDescriptionDetails a[href*='/cat/']").First().Text())
	p.Materials = text("#productDescriptionAboutMe .F_yfF")
	for _, sel := range careSelectors {
		if care := text(sel); care != "" {
			p.CareInfo = care
			break
		}
	}
	p.Sizes = sizes(doc, state)
	p.Images = images(doc, state)

	if p.ProductID == 0 && state != nil {
		p.ProductID = state.ID
	}

	if item.Category != nil {
		p.ScrapedCategory = item.Category.Breadcrumb
		p.CategoryPath = item.Category.Path
		p.ScrapeType = ScrapeTypeCategory
	} else {
		p.ScrapeType = ScrapeTypeSearch
	}

	return p, nil
}

func colors(doc *goquery.Document) []string {
	var out []string
	seen := map[string]bool{}
	add := func(c string) {
		if c != "" && !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	add(cleanText(doc.Find("span[data-testid='product-colour']").First().Text()))
	doc.Find("[data-testid='facetList'] li a").Each(func(_ int, a *goquery.Selection) {
		label, _ := a.Attr("aria-label")
		add(cleanText(label))
	})
	return out
}

func description(doc *goquery.Document, pageURL string) string {
	if block := doc.Find("#productDescriptionDetails .F_yfF").First(); block.Length() > 0 {
		if fragment, err := block.Html(); err == nil {
			if out, err := toMarkdown(fragment, pageURL); err == nil && out != "" {
				return out
			}
		}
		if t := cleanText(block.Text()); t != "" {
			return t
		}
	}
	meta, _ := doc.Find("meta[name='description']").First().Attr("content")
	return cleanText(meta)
}

func brand(doc *goquery.Document, state *inlineProduct, pageURL string) string {
	block := doc.Find("#productDescriptionBrand .F_yfF").First()
	if b := cleanText(block.Find("strong").First().Text()); b != "" {
		return b
	}
	if b := cleanText(block.Text()); b != "" {
		return b
	}
	if state != nil && state.BrandName != "" {
		return cleanText(state.BrandName)
	}
	seg := strings.ReplaceAll(urlutil.FirstPathSegment(pageURL), "-", " ")
	if seg == "" {
		return ""
	}
	return strings.ToUpper(seg[:1]) + seg[1:]
}

func sizes(doc *goquery.Document, state *inlineProduct) []string {
	var out []string
	doc.Find("#variantSelector option").Each(func(_ int, opt *goquery.Selection) {
		if v, _ := opt.Attr("value"); v != "" {
			if s := cleanText(opt.Text()); s != "" {
				out = append(out, s)
			}
		}
	})
	if len(out) == 0 && state != nil {
		for _, v := range state.Variants {
			if v.Size != "" {
				out = append(out, cleanText(v.Size))
			}
		}
		out = urlutil.Unique(out)
	}
	return out
}

func images(doc *goquery.Document, state *inlineProduct) []string {
	var raw []string
	doc.Find("#core-product img").Each(func(_ int, img *goquery.Selection) {
		if src, ok := img.Attr("src"); ok {
			raw = append(raw, src)
		}
	})
	if len(raw) == 0 && state != nil {
		for _, im := range state.Images {
			raw = append(raw, im.URL)
		}
	}

	var out []string
	for _, src := range raw {
		if !strings.Contains(src, imageHostTag) {
			continue
		}
		if strings.HasPrefix(src, "//") {
			src = "https:" + src
		}
		out = append(out, urlutil.StripQuery(src)+imageSuffix)
	}
	return urlutil.Unique(out)
}
