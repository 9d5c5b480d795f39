package ads1220

// Convert24To32 interprets a 3-byte, 24-bit signed value
// in two's complement form, MSB first, as a 32-bit int.
//
// The bytes are placed in the top three bytes of the word and the word is
// shifted right arithmetically, which carries the sign bit of data[0] into
// the top byte.
func Convert24To32(data []byte) int32 {
	raw := int32(data[0]) << 24
	raw |= int32(data[1]) << 16
	raw |= int32(data[2]) << 8
	return raw >> 8
}

// ConvertToVolts converts the signed 24-bit code to a voltage.
// One LSB is (vRef / gain) / 2^23, so 0x800000 maps to -FS exactly and
// 0x7FFFFF to one LSB below +FS.
func ConvertToVolts(code int32, vRef float64, gain Gain) float64 {
	fullScale := vRef / float64(gain.Multiplier())
	return float64(code) * fullScale / codesPerFullScale
}

// TemperatureCelsius converts a reading taken in temperature sensor mode.
// The result is 14 bits, left justified, 0.03125°C per LSB.
func TemperatureCelsius(code int32) float64 {
	return float64(code>>temperatureShift) * temperatureDegLSB
}
