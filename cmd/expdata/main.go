// Command expdata exports experiment session data as hierarchical or tabular
// files and serves them over HTTP.
package main

func main() {
	Execute()
}
