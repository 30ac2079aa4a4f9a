package web

import "html/template"

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; max-width: 960px; margin: 2rem auto; padding: 0 1rem; }
.panes { display: flex; gap: 2rem; flex-wrap: wrap; }
.pane { flex: 1; min-width: 300px; }
img { max-width: 100%; border: 1px solid #ccc; }
label { display: block; font-weight: bold; margin: 1rem 0 .25rem; }
output { display: block; padding: .5rem; border: 1px solid #ccc; min-height: 1.5rem; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p>{{.Description}}</p>
<div class="panes">
  <form class="pane" id="upload">
    <label for="image">Image</label>
    <input type="file" id="image" name="image" accept="image/*" required>
    <p><button type="submit">Submit</button></p>
  </form>
  <div class="pane">
    <label>Output</label>
    <img id="result" alt="">
    <label for="status">{{.StatusLabel}}</label>
    <output id="status"></output>
  </div>
</div>
<script>
document.getElementById("upload").addEventListener("submit", async (e) => {
  e.preventDefault();
  const status = document.getElementById("status");
  const result = document.getElementById("result");
  status.textContent = "Processing...";
  result.removeAttribute("src");
  try {
    const resp = await fetch("/api/predict", { method: "POST", body: new FormData(e.target) });
    const body = await resp.json();
    if (!resp.ok) {
      status.textContent = "Error: " + (body.message || body.error);
      return;
    }
    if (body.image) {
      result.src = body.image;
    }
    status.textContent = body.status;
  } catch (err) {
    status.textContent = "Error: " + err;
  }
});
</script>
</body>
</html>
`))
