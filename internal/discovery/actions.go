// Package discovery : загрузка и кеширование discovery документа движка редактора
// и построение ссылок на редактор.
package discovery

import (
	"bytes"
	"encoding/xml"
	"strings"
	"wopi-gateway/internal/errs"
)

const (
	ActionEdit = "edit"
	ActionView = "view"
)

type wopiDiscovery struct {
	XMLName  xml.Name  `xml:"wopi-discovery"`
	NetZones []netZone `xml:"net-zone"`
}

type netZone struct {
	Name string    `xml:"name,attr"`
	Apps []appNode `xml:"app"`
}

type appNode struct {
	Name    string       `xml:"name,attr"`
	Actions []actionNode `xml:"action"`
}

type actionNode struct {
	Name   string `xml:"name,attr"`
	Ext    string `xml:"ext,attr"`
	URLSrc string `xml:"urlsrc,attr"`
}

// ActionTable : действие -> расширение -> urlsrc и действие -> приложение -> urlsrc.
// Движки по-разному раскладывают действия: одни по расширениям, другие по имени
// приложения (writer, calc) или mime типу
type ActionTable struct {
	byExt map[string]map[string]string
	byApp map[string]map[string]string
	first map[string]string
}

// Lookup : шаблон по расширению, затем по категории, затем первый шаблон действия
func (t *ActionTable) Lookup(action, ext string) (string, bool) {
	if t == nil {
		return "", false
	}
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))

	if ext != "" {
		if src, ok := t.byExt[action][ext]; ok {
			return src, true
		}
		if src, ok := t.byApp[action][ext]; ok {
			return src, true
		}
		if category := CategoryFor(ext); category != "" {
			if src, ok := t.byApp[action][category]; ok {
				return src, true
			}
		}
	}

	src, ok := t.first[action]
	return src, ok
}

// Actions : число известных шаблонов по действию
func (t *ActionTable) Actions() map[string]int {
	out := make(map[string]int, len(t.byExt))
	for action, exts := range t.byExt {
		out[action] += len(exts)
	}
	for action, apps := range t.byApp {
		out[action] += len(apps)
	}
	return out
}

// ParseActions : разбирает net-zone/app/action. Документ без единого действия считается ошибкой
func ParseActions(raw []byte) (*ActionTable, error) {
	var doc wopiDiscovery
	decoder := xml.NewDecoder(bytes.NewReader(raw))
	if err := decoder.Decode(&doc); err != nil {
		return nil, &errs.ParseError{What: "discovery XML", Err: err}
	}

	table := &ActionTable{
		byExt: make(map[string]map[string]string),
		byApp: make(map[string]map[string]string),
		first: make(map[string]string),
	}

	count := 0
	for _, zone := range doc.NetZones {
		for _, app := range zone.Apps {
			appName := strings.ToLower(strings.TrimSpace(app.Name))
			for _, a := range app.Actions {
				action := strings.ToLower(strings.TrimSpace(a.Name))
				src := strings.TrimSpace(a.URLSrc)
				if action == "" || src == "" {
					continue
				}
				count++

				if _, ok := table.first[action]; !ok {
					table.first[action] = src
				}
				if ext := strings.ToLower(strings.TrimSpace(a.Ext)); ext != "" {
					putIfAbsent(table.byExt, action, ext, src)
				}
				if appName != "" {
					putIfAbsent(table.byApp, action, appName, src)
				}
			}
		}
	}

	if count == 0 {
		return nil, &errs.ParseError{What: "discovery XML: нет ни одного action"}
	}
	return table, nil
}

func putIfAbsent(m map[string]map[string]string, action, key, src string) {
	inner, ok := m[action]
	if !ok {
		inner = make(map[string]string)
		m[action] = inner
	}
	if _, exists := inner[key]; !exists {
		inner[key] = src
	}
}

var categories = map[string]string{
	"doc": "writer", "docx": "writer", "docm": "writer", "dot": "writer", "dotx": "writer",
	"odt": "writer", "ott": "writer", "fodt": "writer", "rtf": "writer", "txt": "writer",
	"wpd": "writer", "epub": "writer", "html": "writer", "htm": "writer",

	"xls": "calc", "xlsx": "calc", "xlsm": "calc", "xlsb": "calc", "xlt": "calc", "xltx": "calc",
	"ods": "calc", "ots": "calc", "fods": "calc", "csv": "calc",

	"ppt": "impress", "pptx": "impress", "pptm": "impress", "pps": "impress", "ppsx": "impress",
	"pot": "impress", "potx": "impress", "odp": "impress", "otp": "impress", "fodp": "impress",

	"odg": "draw", "otg": "draw", "fodg": "draw", "vsd": "draw", "vsdx": "draw", "pdf": "draw",
	"svg": "draw",
}

// CategoryFor : приложение редактора по семейству расширения
func CategoryFor(ext string) string {
	return categories[strings.ToLower(strings.TrimPrefix(ext, "."))]
}
