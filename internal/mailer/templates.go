package mailer

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strconv"
	"time"

	"github.com/eReuse/DeviceWare/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Field maps a device attribute path to the column name shown in the mail
type Field struct {
	Path string
	Name string
}

// ReservationFields returns the column projection used in reservation
// mails for the given tenant.
func ReservationFields(tenant string) []Field {
	return []Field{
		{Path: "_id", Name: "ID in " + tenant},
		{Path: "@type", Name: "Type"},
		{Path: "model", Name: "Model"},
		{Path: "serialNumber", Name: "S/N"},
	}
}

// ReservationData is the rendering context of the reservation templates
type ReservationData struct {
	Title      string
	Headers    []string
	Rows       [][]string
	For        *models.Account
	ReserveURL string
}

// NewReservationData projects the devices over the fields into table rows
func NewReservationData(title string, fields []Field, devices []models.Device, forAccount *models.Account, reserveURL string) ReservationData {
	data := ReservationData{
		Title:      title,
		For:        forAccount,
		ReserveURL: reserveURL,
	}
	for _, f := range fields {
		data.Headers = append(data.Headers, f.Name)
	}
	for _, device := range devices {
		row := make([]string, 0, len(fields))
		for _, f := range fields {
			row = append(row, projectField(&device, f.Path))
		}
		data.Rows = append(data.Rows, row)
	}
	return data
}

// RenderReservation renders one of the reservation templates
// (reserve_for, reserve_notify) to an HTML body.
func RenderReservation(templateName string, data ReservationData) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, templateName+".html", data); err != nil {
		return "", fmt.Errorf("failed to render mail template %s: %w", templateName, err)
	}
	return buf.String(), nil
}

// projectField resolves a device attribute by its path name
func projectField(d *models.Device, path string) string {
	switch path {
	case "_id":
		return d.ID.String()
	case "@type":
		return string(d.Type)
	case "hid":
		return d.HID
	case "model":
		return d.Model
	case "manufacturer":
		return d.Manufacturer
	case "serialNumber":
		return d.SerialNumber
	case "labelId":
		return d.LabelID
	case "totalRamSize":
		return strconv.FormatFloat(d.TotalRAMSize, 'f', -1, 64)
	case "totalHardDriveSize":
		return strconv.FormatFloat(d.TotalHardDriveSize, 'f', -1, 64)
	case "_created":
		return d.CreatedAt.UTC().Format(time.RFC3339)
	default:
		return ""
	}
}
