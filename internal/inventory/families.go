// Package inventory filters Tesla inventory results against
// subscriber watch criteria, caches upstream result sets, and tracks
// which vehicles a watch has already alerted on.
package inventory

import (
	domain "github.com/XaviFortes/tesla-tracker/pkg/types"
)

// Family groups option codes that describe the same aspect of a
// configuration. Codes from the same family are alternatives (a car
// has one paint, one wheel set), so a watch listing several codes of
// one family accepts any of them.
type Family string

const (
	FamilyAutopilot Family = "Autopilot"
	FamilyInterior  Family = "Interior"
	FamilyOther     Family = "Other"
	FamilyPaint     Family = "Paint"
	FamilyWheels    Family = "Wheels"
)

type optionInfo struct {
	family Family
	name   string
}

// optionCatalog was scraped from the configurator per model. Names are
// the es_ES display strings, matching the default market.
var optionCatalog = map[domain.ModelCode]map[string]optionInfo{
	domain.ModelY: {
		"$APBS":  {FamilyAutopilot, "Piloto automático"},
		"$IBB3":  {FamilyInterior, "Interior totalmente en negro"},
		"$IPB6":  {FamilyInterior, "Interior totalmente en negro Premium"},
		"$IPB7":  {FamilyInterior, "Interior totalmente en negro Premium"},
		"$IPB8":  {FamilyInterior, "Interior totalmente en negro Premium"},
		"$IPW7":  {FamilyInterior, "Interior en blanco y negro Premium"},
		"$IPW8":  {FamilyInterior, "Interior en blanco y negro Premium"},
		"$STY5B": {FamilyInterior, "Interior de cinco asientos"},
		"$STY5S": {FamilyInterior, "Interior de cinco asientos"},
		"$CPF0":  {FamilyOther, "Conectividad estándar"},
		"$CPF1":  {FamilyOther, "Conectividad premium"},
		"$FM3U":  {FamilyOther, "Mejora de aceleración"},
		"$MDLY":  {FamilyOther, "Model Y"},
		"$MTY41": {FamilyOther, "Gran autonomía con tracción integral"},
		"$MTY47": {FamilyOther, "Gran autonomía con tracción integral"},
		"$MTY52": {FamilyOther, "Gran autonomía con tracción trasera"},
		"$MTY62": {FamilyOther, "Gran autonomía con tracción integral"},
		"$MTY66": {FamilyOther, "Model Y Gran autonomía con tracción trasera"},
		"$MTY68": {FamilyOther, "Standard con tracción trasera"},
		"$SC04":  {FamilyOther, "Acceso a la red de Supercargador + pago en marcha"},
		"$TW01":  {FamilyOther, "Bola de remolque"},
		"$PBSB":  {FamilyPaint, "Negro Sólido"},
		"$PN00":  {FamilyPaint, "Plateado Mercurio"},
		"$PN01":  {FamilyPaint, "Gris Sigilo"},
		"$PPSW":  {FamilyPaint, "Blanco Perla Multicapas"},
		"$PR01":  {FamilyPaint, "Ultra Rojo"},
		"$PX02":  {FamilyPaint, "Negro diamante"},
		"$WY18P": {FamilyWheels, "Llantas Aperture de 18\""},
		"$WY19P": {FamilyWheels, "Llantas Crossflow de 19\""},
		"$WY20A": {FamilyWheels, "Llantas Helix 2.0 de 20\""},
	},
	domain.Model3: {
		"$APBS":  {FamilyAutopilot, "Piloto automático"},
		"$IPB2":  {FamilyInterior, "Negro"},
		"$IPB3":  {FamilyInterior, "Negro"},
		"$IPW3":  {FamilyInterior, "Negro y blanco"},
		"$CPF0":  {FamilyOther, "Conectividad estándar"},
		"$CPF1":  {FamilyOther, "Conectividad premium"},
		"$MDL3":  {FamilyOther, "Model 3"},
		"$MT352": {FamilyOther, "Gran autonomía con tracción integral"},
		"$MT356": {FamilyOther, "Gran autonomía con tracción trasera"},
		"$MT362": {FamilyOther, "Model 3 Gran autonomía con tracción trasera"},
		"$MT369": {FamilyOther, "Model 3 Gran autonomía con tracción trasera"},
		"$SC04":  {FamilyOther, "Acceso a la red de Supercargador + pago en marcha"},
		"$TW01":  {FamilyOther, "Bola de remolque"},
		"$PN00":  {FamilyPaint, "Plateado Mercurio"},
		"$PN01":  {FamilyPaint, "Gris Sigilo"},
		"$PPSB":  {FamilyPaint, "Azul Oscuro Metalizado"},
		"$PPSW":  {FamilyPaint, "Blanco Perla Multicapas"},
		"$PR01":  {FamilyPaint, "Ultra Rojo"},
		"$PX02":  {FamilyPaint, "Negro diamante"},
		"$W38A":  {FamilyWheels, "Llantas Photon de 18\""},
		"$W39S":  {FamilyWheels, "Llantas Nova de 19\""},
	},
	domain.ModelS: {
		"$APBS":  {FamilyAutopilot, "Piloto automático"},
		"$CPF2":  {FamilyOther, "Conectividad premium gratis"},
		"$IBE00": {FamilyOther, "Interior negro premium con decoración de ébano"},
		"$IBE01": {FamilyOther, "Interior negro premium con decoración de ébano"},
		"$ICW01": {FamilyOther, "Interior en crema premium con decoración de madera de roble"},
		"$IWW00": {FamilyOther, "Interior blanco y negro premium con decoración en nogal"},
		"$MDLS":  {FamilyOther, "Model S"},
		"$MTS18": {FamilyOther, "Tracción a las cuatro ruedas"},
		"$MTS22": {FamilyOther, "Model S Tracción a las cuatro ruedas"},
		"$SC05":  {FamilyOther, "Carga gratuita en Supercharger"},
		"$ST06":  {FamilyOther, "Volante"},
		"$TW01":  {FamilyOther, "Capacidad de remolque"},
		"$PN01":  {FamilyPaint, "Gris Sigilo"},
		"$PN02":  {FamilyPaint, "Plateado Lunar"},
		"$PPSW":  {FamilyPaint, "Blanco Perla Multicapas"},
		"$PR01":  {FamilyPaint, "Ultra Rojo"},
		"$PX02":  {FamilyPaint, "Negro diamante"},
		"$WS10":  {FamilyWheels, "Llantas Arachnid de 21\""},
		"$WS13":  {FamilyWheels, "Llantas Velarium de 21\""},
		"$WS90":  {FamilyWheels, "Llantas Tempest de 19\""},
	},
	domain.ModelX: {
		"$APBS":  {FamilyAutopilot, "Piloto automático"},
		"$CC01":  {FamilyInterior, "Interior de cinco asientos"},
		"$CC02":  {FamilyInterior, "Interior de seis asientos"},
		"$CC04":  {FamilyInterior, "Interior de siete asientos"},
		"$CPF2":  {FamilyOther, "Conectividad premium gratis"},
		"$IBC00": {FamilyOther, "Interior totalmente en negro Premium con decoración de fibra de carbono"},
		"$IBE00": {FamilyOther, "Interior negro premium con decoración de ébano"},
		"$IBE01": {FamilyOther, "Interior negro premium con decoración de ébano"},
		"$ICW00": {FamilyOther, "Interior en crema premium con decoración de madera de roble"},
		"$ICW01": {FamilyOther, "Interior en crema premium con decoración de madera de roble"},
		"$IWC00": {FamilyOther, "Interior en negro y blanco Premium con decoración de fibra de carbono"},
		"$IWW00": {FamilyOther, "Interior blanco y negro premium con decoración en nogal"},
		"$IWW01": {FamilyOther, "Interior blanco y negro premium con decoración en nogal"},
		"$MDLX":  {FamilyOther, "Model X"},
		"$MTX13": {FamilyOther, "Tracción a las cuatro ruedas"},
		"$MTX15": {FamilyOther, "Tracción a las cuatro ruedas"},
		"$MTX18": {FamilyOther, "Tracción a las cuatro ruedas"},
		"$MTX19": {FamilyOther, "Plaid"},
		"$MTX22": {FamilyOther, "Model X Tracción a las cuatro ruedas"},
		"$SC05":  {FamilyOther, "Carga gratuita en Supercharger"},
		"$ST06":  {FamilyOther, "Volante"},
		"$ST0Y":  {FamilyOther, "Volante Yoke"},
		"$TW01":  {FamilyOther, "Paquete de remolque"},
		"$PBSB":  {FamilyPaint, "Negro Sólido"},
		"$PN01":  {FamilyPaint, "Gris Sigilo"},
		"$PN02":  {FamilyPaint, "Plateado Lunar"},
		"$PPSW":  {FamilyPaint, "Blanco Perla Multicapas"},
		"$PR01":  {FamilyPaint, "Ultra Rojo"},
		"$PX02":  {FamilyPaint, "Negro diamante"},
		"$WX00":  {FamilyWheels, "Llantas Cyberstream de 20\""},
		"$WX01":  {FamilyWheels, "Llantas Cyberstream de 20\""},
		"$WX02":  {FamilyWheels, "Llantas Perihelix de 20\""},
		"$WX20":  {FamilyWheels, "Llantas Turbine de 22\""},
		"$WX21":  {FamilyWheels, "Llantas Turbine de 22\""},
		"$WX22":  {FamilyWheels, "Llantas Machina de 22\""},
	},
}

// FamilyOf returns the option family for a code on the given model.
// Codes absent from the catalog are reported as unknown; the matcher
// treats each unknown code as its own single-member family.
func FamilyOf(model domain.ModelCode, code string) (Family, bool) {
	info, ok := optionCatalog[model][code]
	if !ok {
		return "", false
	}
	return info.family, true
}

// OptionName returns the display name for an option code on the given
// model.
func OptionName(model domain.ModelCode, code string) (string, bool) {
	info, ok := optionCatalog[model][code]
	if !ok {
		return "", false
	}
	return info.name, true
}

// KnownCodes returns every catalogued code for a model, for the bot's
// option discovery output.
func KnownCodes(model domain.ModelCode) map[string]string {
	catalog := optionCatalog[model]
	out := make(map[string]string, len(catalog))
	for code, info := range catalog {
		out[code] = info.name
	}
	return out
}
