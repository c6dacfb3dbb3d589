package docxwriter

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/fumiama/go-docx"
)

// templateName is the directory under the template FS that go-docx packs
// from, as "xml/<name>/<file>".
const templateName = "techspec"

// paragraphStyles defines the styles referenced by HeadingStyle,
// BulletStyle and NumberStyle. The stock go-docx template only has
// Normal ("a") and table styles.
const paragraphStyles = `
    <w:style w:type="paragraph" w:styleId="` + HeadingStyle + `">
        <w:name w:val="heading 1"/>
        <w:basedOn w:val="a"/>
        <w:next w:val="a"/>
        <w:uiPriority w:val="9"/>
        <w:qFormat/>
        <w:pPr>
            <w:keepNext/>
            <w:spacing w:before="240" w:after="120"/>
            <w:outlineLvl w:val="0"/>
        </w:pPr>
        <w:rPr>
            <w:b/>
            <w:bCs/>
        </w:rPr>
    </w:style>
    <w:style w:type="paragraph" w:styleId="` + BulletStyle + `">
        <w:name w:val="List Bullet"/>
        <w:basedOn w:val="a"/>
        <w:uiPriority w:val="99"/>
        <w:unhideWhenUsed/>
    </w:style>
    <w:style w:type="paragraph" w:styleId="` + NumberStyle + `">
        <w:name w:val="List Number"/>
        <w:basedOn w:val="a"/>
        <w:uiPriority w:val="99"/>
        <w:unhideWhenUsed/>
    </w:style>
`

// templateFS is go-docx's default template with paragraphStyles added to
// word/styles.xml. Built once by newTemplateFS.
var templateFS fs.FS

func init() {
	tfs, err := newTemplateFS()
	if err != nil {
		panic(err)
	}
	templateFS = tfs
}

func newTemplateFS() (fs.FS, error) {
	files := make(map[string][]byte, len(docx.DefaultTemplateFilesList))
	for _, name := range docx.DefaultTemplateFilesList {
		data, err := fs.ReadFile(docx.TemplateXMLFS, "xml/default/"+name)
		if err != nil {
			return nil, fmt.Errorf("read template %s: %w", name, err)
		}
		files["xml/"+templateName+"/"+name] = data
	}

	key := "xml/" + templateName + "/word/styles.xml"
	styles := string(files[key])
	end := strings.LastIndex(styles, "</w:styles>")
	if end < 0 {
		return nil, errors.New("template styles.xml: missing </w:styles>")
	}
	files[key] = []byte(styles[:end] + paragraphStyles + styles[end:])
	return memFS(files), nil
}

// memFS is a flat read-only file system over in-memory files.
type memFS map[string][]byte

func (m memFS) Open(name string) (fs.File, error) {
	data, ok := m[name]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	return &memFile{Reader: bytes.NewReader(data), name: path.Base(name)}, nil
}

type memFile struct {
	*bytes.Reader
	name string
}

func (f *memFile) Stat() (fs.FileInfo, error) { return f, nil }
func (f *memFile) Close() error               { return nil }
func (f *memFile) Name() string               { return f.name }
func (f *memFile) Mode() fs.FileMode          { return 0o444 }
func (f *memFile) ModTime() time.Time         { return time.Time{} }
func (f *memFile) IsDir() bool                { return false }
func (f *memFile) Sys() any                   { return nil }
