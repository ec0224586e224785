// Command taskmanager serves the task manager REST API.
package main

import "github.com/nimburion/taskmanager/pkg/cli"

func main() {
	cli.Execute(cli.NewTaskManagerCommand())
}
