// Package export renders the roster for administrators. The CSV layout is
// meant to open cleanly in spreadsheet software with Thai headers and labels.
package export

import (
	"bufio"
	"io"
	"strings"

	"github.com/courtside/roster/internal/roster"
)

// BOM makes spreadsheet software read the file as UTF-8.
const BOM = "\uFEFF"

// Headers are the CSV column titles: name, nickname, student id, year,
// curriculum, sport, status, has photo.
var Headers = []string{"ชื่อ", "ชื่อเล่น", "รหัสนักศึกษา", "ชั้นปี", "หลักสูตร", "กีฬา", "สถานะ", "มีรูปภาพ"}

const (
	DefaultSport  = "บาสเกตบอล"
	StatusMissing = "ยังไม่ระบุ"
	ImageYes      = "ใช่"
	ImageNo       = "ไม่"
)

var statusLabels = map[string]string{
	roster.StatusStarter:     "ผู้เล่นตัวจริง",
	roster.StatusSubstitute:  "ตัวสำรอง",
	roster.StatusNotSelected: "ไม่ถูกเลือก",
}

// StatusLabel returns the display label of a selection status. Unknown
// values pass through; an empty status reads as not yet decided.
func StatusLabel(status string) string {
	if l, ok := statusLabels[status]; ok {
		return l
	}
	if status == "" {
		return StatusMissing
	}
	return status
}

func SportLabel(sport string) string {
	if sport == "" || strings.EqualFold(sport, "basketball") {
		return DefaultSport
	}
	return sport
}

func ImageFlag(imageURL string) string {
	if imageURL != "" {
		return ImageYes
	}
	return ImageNo
}

// Row renders one athlete as CSV fields.
func Row(a *roster.Athlete) []string {
	return []string{
		a.Name,
		a.Nickname,
		a.StudentID,
		a.YearOfStudy,
		a.Curriculum,
		SportLabel(a.Sport),
		StatusLabel(a.Status),
		ImageFlag(a.ImageURL),
	}
}

// WriteCSV writes the BOM, the header line and one line per athlete. Every
// field is quoted. Nothing is written for an empty roster.
func WriteCSV(w io.Writer, athletes []*roster.Athlete) (int, error) {
	if len(athletes) == 0 {
		return 0, nil
	}

	bw := bufio.NewWriter(w)
	bw.WriteString(BOM)
	writeLine(bw, Headers, false)
	for _, a := range athletes {
		bw.WriteByte('\n')
		writeLine(bw, Row(a), true)
	}
	if err := bw.Flush(); err != nil {
		return 0, err
	}
	return len(athletes), nil
}

func writeLine(w *bufio.Writer, fields []string, quote bool) {
	for i, f := range fields {
		if i > 0 {
			w.WriteByte(',')
		}
		if quote {
			w.WriteByte('"')
			w.WriteString(strings.ReplaceAll(f, `"`, `""`))
			w.WriteByte('"')
		} else {
			w.WriteString(f)
		}
	}
}
