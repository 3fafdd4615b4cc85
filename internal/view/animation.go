package view

import "strings"

// Animation names a weather animation asset.
type Animation string

const (
	AnimationRain        Animation = "rain.gif"
	AnimationCloud       Animation = "cloud.gif"
	AnimationClear       Animation = "clear.gif"
	AnimationStorm       Animation = "storm.gif"
	AnimationSnow        Animation = "snow.gif"
	AnimationTemperature Animation = "temperature.gif"
	AnimationFog         Animation = "fog.gif"
	AnimationMist        Animation = "mist.png"
	AnimationDrizzle     Animation = "drizzle.gif"
	AnimationDefault     Animation = "default.gif"
)

// animationTable is checked in order and the first match wins, so
// "Heavy Cloudy Storm" selects the cloud asset. Do not reorder.
var animationTable = []struct {
	keywords []string
	asset    Animation
}{
	{[]string{"rain"}, AnimationRain},
	{[]string{"cloud"}, AnimationCloud},
	{[]string{"clear"}, AnimationClear},
	{[]string{"storm", "thunder"}, AnimationStorm},
	{[]string{"snow"}, AnimationSnow},
	{[]string{"temperature"}, AnimationTemperature},
	{[]string{"fog", "haze"}, AnimationFog},
	{[]string{"mist"}, AnimationMist},
	{[]string{"drizzle"}, AnimationDrizzle},
}

// AnimationFor picks the animation for a weather description by
// case-insensitive substring match.
func AnimationFor(description string) Animation {
	d := strings.ToLower(description)
	if d == "" {
		return AnimationDefault
	}
	for _, row := range animationTable {
		for _, kw := range row.keywords {
			if strings.Contains(d, kw) {
				return row.asset
			}
		}
	}
	return AnimationDefault
}

const iconBaseURL = "https://openweathermap.org/img/wn/"

// IconURL returns the OpenWeather icon image for an icon code, or "" when
// the code is empty.
func IconURL(icon string) string {
	icon = strings.TrimSpace(icon)
	if icon == "" {
		return ""
	}
	return iconBaseURL + icon + "@2x.png"
}
