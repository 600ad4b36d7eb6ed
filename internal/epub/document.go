// Package epub decodes EPUB submissions: the container, package and
// navigation documents, spine classification, and the positional pairing of
// content chapters with supplied alignment files.
package epub

import (
	"encoding/xml"
	"io"
	"io/fs"
	"log/slog"
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/html/charset"

	"github.com/listenupapp/listenup-ingest/internal/domain"
	"github.com/listenupapp/listenup-ingest/internal/errors"
)

// ContainerPath is where the OCF container descriptor lives.
const ContainerPath = "META-INF/container.xml"

type containerDoc struct {
	Rootfiles []struct {
		FullPath  string `xml:"full-path,attr"`
		MediaType string `xml:"media-type,attr"`
	} `xml:"rootfiles>rootfile"`
}

type manifestItem struct {
	ID         string `xml:"id,attr"`
	Href       string `xml:"href,attr"`
	MediaType  string `xml:"media-type,attr"`
	Properties string `xml:"properties,attr"`
}

type packageDoc struct {
	Metadata struct {
		Titles   []string `xml:"title"`
		Creators []string `xml:"creator"`
		Metas    []struct {
			Name    string `xml:"name,attr"`
			Content string `xml:"content,attr"`
		} `xml:"meta"`
	} `xml:"metadata"`
	Items    []manifestItem `xml:"manifest>item"`
	ItemRefs []struct {
		IDRef string `xml:"idref,attr"`
	} `xml:"spine>itemref"`
}

// SpineItem is one entry of the reading order. Order is 1-based and counts
// every itemref, including ones that reference no manifest item.
type SpineItem struct {
	Order      int
	ID         string
	Href       string
	MediaType  string
	Properties string
}

// Document is a parsed EPUB.
type Document struct {
	Metadata domain.EpubMetadata
	// PackagePath is the fs path of the package document.
	PackagePath string
	Spine       []SpineItem
	// Titles maps hrefs (relative to the package document) to navigation titles.
	Titles map[string]string

	items map[string]manifestItem
	// ordered holds the same items in manifest document order.
	ordered []manifestItem
	coverID string
}

// Dir is the directory hrefs are relative to.
func (d *Document) Dir() string {
	return path.Dir(d.PackagePath)
}

// Resolve turns an href into an fs path.
func (d *Document) Resolve(href string) string {
	return path.Join(d.Dir(), stripFragment(href))
}

// CoverPath returns the fs path of the cover image: the manifest item
// flagged cover-image, else the item named by <meta name="cover">.
func (d *Document) CoverPath() (string, bool) {
	if item, ok := d.itemWithProperty("cover-image"); ok {
		return d.Resolve(item.Href), true
	}
	if d.coverID != "" {
		if item, ok := d.items[d.coverID]; ok && item.Href != "" {
			return d.Resolve(item.Href), true
		}
	}
	return "", false
}

// itemWithProperty returns the first manifest item, in document order,
// carrying prop.
func (d *Document) itemWithProperty(prop string) (manifestItem, bool) {
	for _, item := range d.ordered {
		if hasProperty(item.Properties, prop) {
			return item, true
		}
	}
	return manifestItem{}, false
}

// Structure lists every spine item with its navigation title and
// classification. No chapter is paired with audio yet.
func (d *Document) Structure() *domain.EpubStructure {
	s := &domain.EpubStructure{
		Type:     string(domain.BookTypeEPUB),
		Metadata: d.Metadata,
		Chapters: make([]domain.EpubChapter, 0, len(d.Spine)),
	}
	for _, item := range d.Spine {
		s.Chapters = append(s.Chapters, domain.EpubChapter{
			EpubID:   item.ID,
			Order:    item.Order,
			Title:    d.Titles[stripFragment(item.Href)],
			Href:     item.Href,
			FilePath: d.Resolve(item.Href),
			Type:     Classify(item.Href, item.ID),
		})
	}
	return s
}

// Parser reads EPUB documents from any fs.FS; *zip.Reader satisfies it.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a Parser.
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

// Parse walks container, package document and navigation document. The
// first two are required; a missing or broken navigation document only
// leaves titles empty.
func (p *Parser) Parse(fsys fs.FS) (*Document, error) {
	containerPath, err := findContainer(fsys)
	if err != nil {
		return nil, err
	}

	var c containerDoc
	if err := decodeXML(fsys, containerPath, &c); err != nil {
		return nil, errors.MalformedXML("container document", err)
	}

	// full-path is relative to the directory holding META-INF.
	root := path.Dir(path.Dir(containerPath))
	var pkgPath string
	for _, rf := range c.Rootfiles {
		if rf.FullPath == "" {
			continue
		}
		candidate := path.Join(root, rf.FullPath)
		if fileExists(fsys, candidate) {
			pkgPath = candidate
			break
		}
	}
	if pkgPath == "" {
		return nil, errors.MissingPackageDocument("container does not reference a package document")
	}

	var pkg packageDoc
	if err := decodeXML(fsys, pkgPath, &pkg); err != nil {
		return nil, errors.MalformedXML("package document", err)
	}

	doc := &Document{
		PackagePath: pkgPath,
		items:       make(map[string]manifestItem, len(pkg.Items)),
	}
	if len(pkg.Metadata.Titles) > 0 {
		doc.Metadata.Title = strings.TrimSpace(pkg.Metadata.Titles[0])
	}
	if len(pkg.Metadata.Creators) > 0 {
		doc.Metadata.Creator = strings.TrimSpace(pkg.Metadata.Creators[0])
	}
	for _, m := range pkg.Metadata.Metas {
		if m.Name == "cover" {
			doc.coverID = m.Content
			break
		}
	}
	for _, item := range pkg.Items {
		if item.ID != "" && item.Href != "" {
			doc.items[item.ID] = item
			doc.ordered = append(doc.ordered, item)
		}
	}
	for i, ref := range pkg.ItemRefs {
		item, ok := doc.items[ref.IDRef]
		if !ok {
			continue
		}
		doc.Spine = append(doc.Spine, SpineItem{
			Order:      i + 1,
			ID:         item.ID,
			Href:       item.Href,
			MediaType:  item.MediaType,
			Properties: item.Properties,
		})
	}

	doc.Titles = p.navigationTitles(fsys, doc)

	p.logger.Debug("parsed epub",
		"package", pkgPath,
		"spine", len(doc.Spine),
		"titles", len(doc.Titles),
	)
	return doc, nil
}

// findContainer checks the standard location, then any container.xml.
func findContainer(fsys fs.FS) (string, error) {
	if fileExists(fsys, ContainerPath) {
		return ContainerPath, nil
	}

	var found string
	_ = fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && strings.EqualFold(d.Name(), "container.xml") {
			found = p
			return fs.SkipAll
		}
		return nil
	})
	if found == "" {
		return "", errors.MissingContainer("EPUB has no container descriptor")
	}
	return found, nil
}

func decodeXML(fsys fs.FS, name string, v any) error {
	f, err := openHref(fsys, name)
	if err != nil {
		return err
	}
	defer f.Close()

	dec := xml.NewDecoder(f)
	dec.CharsetReader = charset.NewReaderLabel
	dec.Entity = xml.HTMLEntity
	return dec.Decode(v)
}

// openHref opens name, retrying with percent-decoding for hrefs such as
// "Text/Chapter%201.xhtml".
func openHref(fsys fs.FS, name string) (fs.File, error) {
	f, err := fsys.Open(name)
	if err == nil {
		return f, nil
	}
	if unescaped, uerr := url.PathUnescape(name); uerr == nil && unescaped != name {
		if f, err2 := fsys.Open(unescaped); err2 == nil {
			return f, nil
		}
	}
	return nil, err
}

func readHref(fsys fs.FS, name string) ([]byte, error) {
	f, err := openHref(fsys, name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func fileExists(fsys fs.FS, name string) bool {
	info, err := fs.Stat(fsys, name)
	return err == nil && !info.IsDir()
}

func stripFragment(href string) string {
	if i := strings.IndexByte(href, '#'); i >= 0 {
		return href[:i]
	}
	return href
}
