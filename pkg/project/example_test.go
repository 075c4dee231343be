package project_test

import (
	"fmt"

	"github.com/matzehuels/sb3min/pkg/project"
)

func ExampleParse() {
	doc := []byte(`{"targets":[{"name":"Stage","isStage":true,
		"variables":{"my-var-id":["score",0]},
		"blocks":{"b1":{"opcode":"data_setvariableto","parent":null,"next":null,
			"fields":{"VARIABLE":["score","my-var-id"]}}}}]}`)

	p, err := project.Parse(doc)
	if err != nil {
		panic(err)
	}
	stage := p.Targets[0]
	field := stage.Blocks["b1"].Block.Fields[project.FieldVariable]
	fmt.Println(stage.Name(), field.Name(), *field.ID)

	out, _ := p.Encode()
	fmt.Println(string(out))
	// Output:
	// Stage score my-var-id
	// {"targets":[{"blocks":{"b1":{"fields":{"VARIABLE":["score","my-var-id"]},"next":null,"opcode":"data_setvariableto","parent":null}},"isStage":true,"name":"Stage","variables":{"my-var-id":["score",0]}}]}
}
