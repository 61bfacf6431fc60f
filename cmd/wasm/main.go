//go:build js && wasm
// +build js,wasm

package main

import (
	"encoding/json"
	"fmt"
	"syscall/js"

	"github.com/MeKo-Tech/cubeplanet/internal/config"
	"github.com/MeKo-Tech/cubeplanet/internal/noise"
	"github.com/MeKo-Tech/cubeplanet/internal/tile"
)

// HeightRequest asks for the surface radius at a face coordinate.
type HeightRequest struct {
	Key  string  `json:"key"`
	U    float64 `json:"u"`
	V    float64 `json:"v"`
	Seed *int64  `json:"seed,omitempty"`
}

type HeightResponse struct {
	Height    float64    `json:"height"`
	Direction [3]float64 `json:"direction"`
}

type KeyResponse struct {
	Key    string     `json:"key"`
	Face   string     `json:"face"`
	Depth  uint32     `json:"depth"`
	X      uint32     `json:"x"`
	Y      uint32     `json:"y"`
	UVMin  [2]float64 `json:"uv_min"`
	UVMax  [2]float64 `json:"uv_max"`
	Parent string     `json:"parent,omitempty"`
}

var fields = map[int64]*noise.Field{}

func fieldFor(seed int64) (*noise.Field, error) {
	if f, ok := fields[seed]; ok {
		return f, nil
	}
	cfg := config.Default()
	cfg.Noise.Seed = seed
	f, err := noise.New(cfg.NoiseParams(), cfg.Planet.Radius, cfg.BaseLandOffset())
	if err != nil {
		return nil, err
	}
	fields[seed] = f
	return f, nil
}

// parseKey is called from JavaScript to decode a patch key such as
// "f2_z3_x1_y5", so the browser can address a `cubeplanet serve` backend.
func parseKey(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return jsError("missing arguments")
	}

	k, err := tile.ParseKey(args[0].String())
	if err != nil {
		return jsError(err.Error())
	}

	lo, hi := k.Bounds()
	resp := KeyResponse{
		Key:   k.String(),
		Face:  k.Face.String(),
		Depth: k.Z,
		X:     k.X,
		Y:     k.Y,
		UVMin: [2]float64{lo.X(), lo.Y()},
		UVMax: [2]float64{hi.X(), hi.Y()},
	}
	if k.Z > 0 {
		resp.Parent = k.Parent().String()
	}
	return toJS(resp)
}

// height samples the default planet's surface radius at (u, v) inside a
// patch, with an optional seed override.
func height(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return jsError("missing arguments")
	}

	var req HeightRequest
	if err := json.Unmarshal([]byte(args[0].String()), &req); err != nil {
		return jsError(fmt.Sprintf("failed to parse request: %v", err))
	}
	k, err := tile.ParseKey(req.Key)
	if err != nil {
		return jsError(err.Error())
	}

	var seed int64
	if req.Seed != nil {
		seed = *req.Seed
	}
	f, err := fieldFor(seed)
	if err != nil {
		return jsError(err.Error())
	}

	lo, hi := k.Bounds()
	u := lo.X() + (hi.X()-lo.X())*req.U
	v := lo.Y() + (hi.Y()-lo.Y())*req.V
	dir := k.Face.Direction(u, v)
	return toJS(HeightResponse{Height: f.Height(dir), Direction: [3]float64(dir)})
}

func jsError(msg string) interface{} {
	return map[string]interface{}{"error": msg}
}

// toJS converts a response struct into a plain JS object via JSON.
func toJS(v any) interface{} {
	data, err := json.Marshal(v)
	if err != nil {
		return jsError(err.Error())
	}
	return js.Global().Get("JSON").Call("parse", string(data))
}

func initModule(this js.Value, args []js.Value) interface{} {
	fmt.Println("CubePlanet WASM module initialized")
	return map[string]interface{}{"status": "ready"}
}

func main() {
	c := make(chan struct{})

	js.Global().Set("cubeplanetParseKey", js.FuncOf(parseKey))
	js.Global().Set("cubeplanetHeight", js.FuncOf(height))
	js.Global().Set("cubeplanetInit", js.FuncOf(initModule))

	fmt.Println("CubePlanet WASM module loaded")
	<-c
}
